package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/config"
)

const (
	EventSucceeded = "payment.succeeded"
	EventCanceled  = "payment.canceled"

	gatewaySucceeded = "succeeded"
	gatewayCanceled  = "canceled"
)

var (
	ErrNotApproved      = errors.New("application is not approved for payment")
	ErrAlreadyPaid      = errors.New("payment already completed")
	ErrInvalidReturnURL = errors.New("invalid return url")
	ErrInvalidEvent     = errors.New("invalid webhook payload")
	ErrEventMismatch    = errors.New("webhook event does not match gateway state")
)

// Notification is the body YooKassa posts to the webhook.
type Notification struct {
	Type   string         `json:"type"`
	Event  string         `json:"event"`
	Object GatewayPayment `json:"object"`
}

type Params struct {
	fx.In

	Config   *config.AppConfig
	Logger   *zap.Logger
	Payments Repository
	Accounts account.Repository
	Cache    *account.Cache
	Client   *Client
}

type Service struct {
	config   *config.AppConfig
	log      *zap.Logger
	payments Repository
	accounts account.Repository
	cache    *account.Cache
	client   *Client
	now      func() time.Time
}

func NewService(p Params) *Service {
	return &Service{
		config:   p.Config,
		log:      p.Logger.Named("payment"),
		payments: p.Payments,
		accounts: p.Accounts,
		cache:    p.Cache,
		client:   p.Client,
		now:      time.Now,
	}
}

// CreatePayment opens a gateway payment for an approved account and records
// it as pending. The amount always comes from configuration.
func (s *Service) CreatePayment(ctx context.Context, accountID, returnURL string) (*Result, error) {
	returnURL, err := s.returnURL(returnURL)
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	switch acc.Status {
	case account.StatusPaid:
		return nil, ErrAlreadyPaid
	case account.StatusApproved:
	default:
		return nil, ErrNotApproved
	}

	previous, err := s.payments.ListByAccount(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range previous {
		if p.Status == StatusPaid {
			return nil, ErrAlreadyPaid
		}
	}

	cfg := s.config.Payment
	id := uuid.NewString()
	key := uuid.NewString()
	description := cfg.Description
	if description == "" {
		description = fmt.Sprintf("Оплата участия в TourFurr 2026 (заявка %s)", acc.ID[:min(8, len(acc.ID))])
	}

	gp, err := s.client.CreatePayment(ctx, CreateParams{
		IdempotenceKey: key,
		Amount:         cfg.Amount,
		Currency:       cfg.Currency,
		Description:    description,
		ReturnURL:      returnURL,
		Metadata:       map[string]string{"account_id": acc.ID, "payment_id": id},
	})
	if err != nil {
		return nil, err
	}

	confirmationURL := ""
	if gp.Confirmation != nil {
		confirmationURL = gp.Confirmation.ConfirmationURL
	}

	record := &Payment{
		ID:                id,
		AccountID:         acc.ID,
		ProviderPaymentID: gp.ID,
		IdempotenceKey:    key,
		Status:            StatusPending,
		Amount:            cfg.Amount,
		Currency:          cfg.Currency,
		ConfirmationURL:   confirmationURL,
		CreatedAt:         s.now(),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		s.log.Error("failed to store created payment",
			zap.String("account_id", acc.ID),
			zap.String("provider_payment_id", gp.ID),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("payment created",
		zap.String("account_id", acc.ID),
		zap.String("provider_payment_id", gp.ID))

	return &Result{
		PaymentID:       gp.ID,
		ConfirmationURL: confirmationURL,
		Status:          gp.Status,
	}, nil
}

func (s *Service) returnURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		base := strings.TrimRight(s.config.Server.PublicURL, "/")
		if base == "" {
			return "", ErrInvalidReturnURL
		}
		return base + "/dashboard", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", ErrInvalidReturnURL
	}
	return raw, nil
}

// HandleWebhook applies a gateway notification. Notifications for payments
// this service never created are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, n Notification) error {
	if n.Object.ID == "" || n.Event == "" {
		return ErrInvalidEvent
	}

	gp := n.Object
	if s.config.Payment.VerifyWebhooks {
		fetched, err := s.client.GetPayment(ctx, gp.ID)
		if err != nil {
			return err
		}
		gp = *fetched
	}

	record, err := s.payments.FindByProviderID(ctx, gp.ID)
	if errors.Is(err, ErrPaymentNotFound) {
		s.log.Warn("webhook for unknown payment",
			zap.String("event", n.Event),
			zap.String("provider_payment_id", gp.ID))
		return nil
	}
	if err != nil {
		return err
	}

	switch n.Event {
	case EventSucceeded:
		if gp.Status != gatewaySucceeded {
			return ErrEventMismatch
		}
		return s.settle(ctx, record, gp)
	case EventCanceled:
		if gp.Status != gatewayCanceled {
			return ErrEventMismatch
		}
		if err := s.payments.MarkCanceled(ctx, record.ID); err != nil {
			return err
		}
		s.log.Info("payment canceled",
			zap.String("account_id", record.AccountID),
			zap.String("provider_payment_id", gp.ID))
		return nil
	default:
		s.log.Debug("ignoring webhook event", zap.String("event", n.Event))
		return nil
	}
}

func (s *Service) settle(ctx context.Context, record *Payment, gp GatewayPayment) error {
	if record.Status == StatusCanceled {
		s.log.Warn("success reported for canceled payment",
			zap.String("account_id", record.AccountID),
			zap.String("provider_payment_id", gp.ID))
		return nil
	}

	amount := gp.Amount.Float()
	if amount == 0 {
		amount = record.Amount
	}
	if err := s.payments.MarkPaid(ctx, record.ID, amount, s.now()); err != nil {
		return err
	}

	err := s.accounts.TransitionStatus(ctx, record.AccountID, account.StatusApproved, account.StatusPaid)
	switch {
	case err == nil:
	case errors.Is(err, account.ErrInvalidTransition):
		// Redelivered notification, or the account changed under us.
		acc, findErr := s.accounts.FindByID(ctx, record.AccountID)
		if findErr != nil {
			return findErr
		}
		if acc.Status != account.StatusPaid {
			s.log.Warn("paid payment for account outside approved status",
				zap.String("account_id", acc.ID),
				zap.String("status", string(acc.Status)))
		}
	default:
		return err
	}
	s.cache.Evict(record.AccountID)

	s.log.Info("payment confirmed",
		zap.String("account_id", record.AccountID),
		zap.String("provider_payment_id", gp.ID),
		zap.Float64("amount", amount))
	return nil
}
