package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/database/dbtest"
)

// fakeGateway mimics the parts of the YooKassa API the client uses.
type fakeGateway struct {
	mu       sync.Mutex
	created  []createRequest
	headers  []http.Header
	statuses map[string]string
	fail     int
	next     int
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	g := &fakeGateway{statuses: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != "shop" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if g.fail != 0 {
		w.WriteHeader(g.fail)
		_, _ = w.Write([]byte(`{"type":"error","code":"invalid_request","description":"boom"}`))
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/payments":
		var req createRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		g.created = append(g.created, req)
		g.headers = append(g.headers, r.Header.Clone())
		g.next++
		id := "pay-" + string(rune('0'+g.next))
		g.statuses[id] = "pending"
		_ = json.NewEncoder(w).Encode(GatewayPayment{
			ID:           id,
			Status:       "pending",
			Amount:       req.Amount,
			Confirmation: &Confirmation{Type: "redirect", ConfirmationURL: "https://yoomoney.test/confirm/" + id},
			Metadata:     req.Metadata,
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/payments/"):
		id := strings.TrimPrefix(r.URL.Path, "/payments/")
		status, ok := g.statuses[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(GatewayPayment{
			ID:     id,
			Status: status,
			Amount: Amount{Value: "2500.00", Currency: "RUB"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *fakeGateway) setStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = status
}

type fixture struct {
	service  *Service
	config   *config.AppConfig
	gateway  *fakeGateway
	payments *MockRepository
	accounts *account.MockRepository
	cache    *account.Cache
}

func newFixture(t *testing.T) *fixture {
	gateway, srv := newFakeGateway(t)
	cfg := &config.AppConfig{
		Server: config.ServerConfig{PublicURL: "https://tourfurr.test"},
		Payment: config.PaymentConfig{
			ShopID:    "shop",
			SecretKey: "secret",
			BaseURL:   srv.URL,
			Amount:    2500,
			Currency:  "RUB",
			Timeout:   5 * time.Second,
		},
	}

	f := &fixture{
		config:   cfg,
		gateway:  gateway,
		payments: NewMockRepository(),
		accounts: account.NewMockRepository(),
		cache:    account.NewCache(time.Minute),
	}
	logger := zap.NewNop()
	f.service = NewService(Params{
		Config:   cfg,
		Logger:   logger,
		Payments: f.payments,
		Accounts: f.accounts,
		Cache:    f.cache,
		Client:   NewClient(&cfg.Payment, logger),
	})

	for _, s := range []account.Status{account.StatusPending, account.StatusApproved, account.StatusRejected, account.StatusPaid} {
		f.accounts.Put(&account.Account{
			ID:            string(s) + "-0000-acc",
			Email:         string(s) + "@b.com",
			Nickname:      string(s),
			Status:        s,
			EmailVerified: true,
		})
	}
	return f
}

const approvedID = "approved-0000-acc"

func TestClient_CreatePaymentRequest(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.CreatePayment(context.Background(), approvedID, "https://tourfurr.test/payment")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", result.PaymentID)
	assert.Equal(t, "pending", result.Status)
	assert.Equal(t, "https://yoomoney.test/confirm/pay-1", result.ConfirmationURL)

	require.Len(t, f.gateway.created, 1)
	req := f.gateway.created[0]
	assert.Equal(t, Amount{Value: "2500.00", Currency: "RUB"}, req.Amount)
	assert.True(t, req.Capture)
	assert.Equal(t, "redirect", req.Confirmation.Type)
	assert.Equal(t, "https://tourfurr.test/payment", req.Confirmation.ReturnURL)
	assert.Equal(t, approvedID, req.Metadata["account_id"])
	assert.Contains(t, req.Description, "approved")
	assert.Len(t, f.gateway.headers[0].Get("Idempotence-Key"), 36)
}

func TestService_CreatePayment(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		returnURL string
		wantErr   error
	}{
		{name: "approved", accountID: approvedID, returnURL: "https://tourfurr.test/payment"},
		{name: "default return url", accountID: approvedID},
		{name: "pending", accountID: "pending-0000-acc", wantErr: ErrNotApproved},
		{name: "rejected", accountID: "rejected-0000-acc", wantErr: ErrNotApproved},
		{name: "already paid", accountID: "paid-0000-acc", wantErr: ErrAlreadyPaid},
		{name: "unknown account", accountID: "ghost", wantErr: account.ErrAccountNotFound},
		{name: "relative return url", accountID: approvedID, returnURL: "/payment", wantErr: ErrInvalidReturnURL},
		{name: "script return url", accountID: approvedID, returnURL: "javascript:alert(1)", wantErr: ErrInvalidReturnURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			result, err := f.service.CreatePayment(context.Background(), tt.accountID, tt.returnURL)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.gateway.created)
				return
			}
			require.NoError(t, err)

			stored, err := f.payments.FindByProviderID(context.Background(), result.PaymentID)
			require.NoError(t, err)
			assert.Equal(t, tt.accountID, stored.AccountID)
			assert.Equal(t, StatusPending, stored.Status)
			assert.Equal(t, 2500.0, stored.Amount)
			assert.NotEmpty(t, stored.IdempotenceKey)
		})
	}
}

func TestService_CreatePaymentRefusesAfterSettledPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.CreatePayment(ctx, approvedID, "")
	require.NoError(t, err)
	stored, err := f.payments.FindByProviderID(ctx, result.PaymentID)
	require.NoError(t, err)
	require.NoError(t, f.payments.MarkPaid(ctx, stored.ID, 2500, time.Now()))

	_, err = f.service.CreatePayment(ctx, approvedID, "")
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestService_CreatePaymentGatewayErrors(t *testing.T) {
	t.Run("gateway failure", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.fail = http.StatusInternalServerError

		_, err := f.service.CreatePayment(context.Background(), approvedID, "")
		assert.ErrorIs(t, err, ErrGateway)
		payments, _ := f.payments.ListByAccount(context.Background(), approvedID)
		assert.Empty(t, payments)
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		f.service.client = NewClient(&config.PaymentConfig{BaseURL: "http://unused"}, zap.NewNop())

		_, err := f.service.CreatePayment(context.Background(), approvedID, "")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func notification(event, id, status string) Notification {
	return Notification{
		Type:  "notification",
		Event: event,
		Object: GatewayPayment{
			ID:     id,
			Status: status,
			Amount: Amount{Value: "2500.00", Currency: "RUB"},
		},
	}
}

func TestService_HandleWebhookSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.CreatePayment(ctx, approvedID, "")
	require.NoError(t, err)
	acc, _ := f.accounts.FindByID(ctx, approvedID)
	f.cache.Put(acc)

	n := notification(EventSucceeded, result.PaymentID, "succeeded")
	require.NoError(t, f.service.HandleWebhook(ctx, n))

	stored, err := f.payments.FindByProviderID(ctx, result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)

	acc, err = f.accounts.FindByID(ctx, approvedID)
	require.NoError(t, err)
	assert.Equal(t, account.StatusPaid, acc.Status)
	_, cached := f.cache.Get(approvedID)
	assert.False(t, cached)

	// Redelivery changes nothing and is still acknowledged.
	require.NoError(t, f.service.HandleWebhook(ctx, n))
	acc, _ = f.accounts.FindByID(ctx, approvedID)
	assert.Equal(t, account.StatusPaid, acc.Status)
}

func TestService_HandleWebhookCanceled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.CreatePayment(ctx, approvedID, "")
	require.NoError(t, err)

	require.NoError(t, f.service.HandleWebhook(ctx, notification(EventCanceled, result.PaymentID, "canceled")))

	stored, _ := f.payments.FindByProviderID(ctx, result.PaymentID)
	assert.Equal(t, StatusCanceled, stored.Status)
	acc, _ := f.accounts.FindByID(ctx, approvedID)
	assert.Equal(t, account.StatusApproved, acc.Status)

	// A late success for a canceled payment cannot resurrect it.
	require.NoError(t, f.service.HandleWebhook(ctx, notification(EventSucceeded, result.PaymentID, "succeeded")))
	stored, _ = f.payments.FindByProviderID(ctx, result.PaymentID)
	assert.Equal(t, StatusCanceled, stored.Status)
	acc, _ = f.accounts.FindByID(ctx, approvedID)
	assert.Equal(t, account.StatusApproved, acc.Status)
}

func TestService_HandleWebhookEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		n       Notification
		wantErr error
	}{
		{name: "unknown payment acknowledged", n: notification(EventSucceeded, "pay-unknown", "succeeded")},
		{name: "unhandled event acknowledged", n: notification("payment.waiting_for_capture", "pay-1", "waiting_for_capture")},
		{name: "missing object", n: Notification{Event: EventSucceeded}, wantErr: ErrInvalidEvent},
		{name: "missing event", n: Notification{Object: GatewayPayment{ID: "pay-1"}}, wantErr: ErrInvalidEvent},
		{name: "status disagrees with event", n: notification(EventSucceeded, "pay-1", "pending"), wantErr: ErrEventMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.service.CreatePayment(context.Background(), approvedID, "")
			require.NoError(t, err)

			err = f.service.HandleWebhook(context.Background(), tt.n)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_HandleWebhookVerifiesWithGateway(t *testing.T) {
	f := newFixture(t)
	f.config.Payment.VerifyWebhooks = true
	ctx := context.Background()

	result, err := f.service.CreatePayment(ctx, approvedID, "")
	require.NoError(t, err)

	// A forged success while the gateway still reports pending is refused.
	err = f.service.HandleWebhook(ctx, notification(EventSucceeded, result.PaymentID, "succeeded"))
	assert.ErrorIs(t, err, ErrEventMismatch)
	acc, _ := f.accounts.FindByID(ctx, approvedID)
	assert.Equal(t, account.StatusApproved, acc.Status)

	f.gateway.setStatus(result.PaymentID, "succeeded")
	require.NoError(t, f.service.HandleWebhook(ctx, notification(EventSucceeded, result.PaymentID, "succeeded")))
	acc, _ = f.accounts.FindByID(ctx, approvedID)
	assert.Equal(t, account.StatusPaid, acc.Status)
}

func TestRepository_SettlesPendingOnly(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &Payment{}))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := &Payment{
		ID:                "11111111-1111-1111-1111-111111111111",
		AccountID:         approvedID,
		ProviderPaymentID: "pay-1",
		IdempotenceKey:    "22222222-2222-2222-2222-222222222222",
		Status:            StatusPending,
		Amount:            2500,
		Currency:          "RUB",
	}
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.MarkPaid(ctx, p.ID, 2500, now))
	require.NoError(t, repo.MarkCanceled(ctx, p.ID))

	stored, err := repo.FindByProviderID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	assert.True(t, stored.PaidAt.Equal(now))

	assert.ErrorIs(t, repo.MarkPaid(ctx, "missing", 1, now), ErrPaymentNotFound)
	_, err = repo.FindByProviderID(ctx, "pay-2")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	list, err := repo.ListByAccount(ctx, approvedID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
