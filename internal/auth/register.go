package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/security"
	"github.com/elskow/tourfurr/internal/store"
)

// Register creates a pending, unverified account and mails a verification
// code. It never establishes a session.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	now := s.now()
	if opens := s.config.Auth.RegistrationOpensAt; !opens.IsZero() && now.Before(opens) {
		return nil, &Error{
			Kind:    KindForbidden,
			Message: fmt.Sprintf("Registration opens on %s", opens.UTC().Format("02.01.2006 15:04 MST")),
		}
	}

	email, err := validateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strength := security.CheckPassword(req.Password); !strength.Strong {
		return nil, weakPasswordError(strength)
	}
	if !validNickname(strings.TrimSpace(req.Nickname)) {
		return nil, validationError("nickname", "Nickname may contain letters, digits, dots, dashes and underscores")
	}
	if !req.AgreeRules || !req.AgreePrivacy {
		return nil, validationError("agree_rules", "You must accept the rules and the privacy policy")
	}

	if err := s.allow(registerKey(email), email, s.config.RateLimit.Register); err != nil {
		return nil, err
	}

	if security.AnySuspicious(req.Nickname, req.Phone, req.Telegram, req.Description, req.Pets, req.Allergies) {
		s.audit.Record(security.EventSuspiciousActivity, email, "", "registration")
		return nil, validationError("", "The form contains forbidden content")
	}

	if err := s.clearStaleRegistration(ctx, email); err != nil {
		return nil, infrastructureError(err)
	}

	ident, err := s.identities.SignUp(ctx, email, req.Password, false)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityExists) {
			return nil, conflictError("email", "This email is already registered")
		}
		return nil, infrastructureError(fmt.Errorf("sign up: %w", err))
	}

	acc := &account.Account{
		ID:              ident.ID,
		Email:           email,
		Nickname:        security.Sanitize(req.Nickname, maxNicknameLength),
		Phone:           security.Sanitize(req.Phone, maxPhoneLength),
		Telegram:        security.Sanitize(req.Telegram, maxTelegramLength),
		Description:     security.Sanitize(req.Description, security.DefaultMaxInputLength),
		HasPets:         req.HasPets,
		Pets:            security.Sanitize(req.Pets, security.DefaultMaxInputLength),
		Allergies:       security.Sanitize(req.Allergies, security.DefaultMaxInputLength),
		EmailSubscribed: req.EmailSubscribed,
		Status:          account.StatusPending,
		CreatedAt:       now.UTC(),
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if derr := s.identities.Delete(ctx, ident.ID); derr != nil {
			s.log.Error("failed to roll back identity", zap.String("identity_id", ident.ID), zap.Error(derr))
		}
		return nil, accountConflict(err)
	}

	s.audit.Record(security.EventRegistration, email, "", "")
	s.log.Info("account registered", zap.String("account_id", acc.ID))

	delivery := s.sendVerificationCode(ctx, email)
	return &RegisterResult{
		AccountID:     acc.ID,
		Email:         email,
		CodeSent:      delivery.Sent,
		DeliveryLimit: delivery.RateLimited,
		CodeExpiresAt: delivery.ExpiresAt,
		DeletesAt:     acc.CreatedAt.Add(s.config.Auth.GracePeriod),
	}, nil
}

// accountConflict maps a users-table write failure onto a field-specific
// conflict, or infrastructure when it is not a uniqueness violation.
func accountConflict(err error) error {
	conflict, ok := store.ClassifyConflict(err)
	if !ok {
		return infrastructureError(err)
	}
	switch conflict.Kind {
	case store.ConflictEmail:
		return conflictError("email", "This email is already registered")
	case store.ConflictNickname:
		return conflictError("nickname", "This nickname is already taken")
	default:
		return conflictError("", "This account already exists")
	}
}

// clearStaleRegistration removes an unverified account for email whose grace
// period is over, so the address can be registered again.
func (s *Service) clearStaleRegistration(ctx context.Context, email string) error {
	acc, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrAccountNotFound) {
		return s.clearOrphanIdentity(ctx, email)
	}
	if err != nil {
		return err
	}
	if !acc.UnverifiedExpired(s.config.Auth.GracePeriod, s.now()) {
		return nil
	}

	s.log.Info("removing expired unverified account", zap.String("account_id", acc.ID))
	return s.removeAccount(ctx, acc)
}

// clearOrphanIdentity drops an unconfirmed credential left behind by a
// registration that failed after sign-up.
func (s *Service) clearOrphanIdentity(ctx context.Context, email string) error {
	ident, err := s.identities.FindByEmail(ctx, email)
	if errors.Is(err, identity.ErrIdentityNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if ident.EmailConfirmedAt != nil {
		return nil
	}
	err = s.identities.Delete(ctx, ident.ID)
	if errors.Is(err, identity.ErrIdentityNotFound) {
		return nil
	}
	return err
}

type VerifyResult struct {
	Verified bool             `json:"verified"`
	Profile  *account.Profile `json:"profile,omitempty"`
}

// Verify redeems an email verification code and marks the account verified.
// The account stays pending until an admin decides on it.
func (s *Service) Verify(ctx context.Context, rawEmail, code string) (*VerifyResult, error) {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError("code", "Enter the code from the email")
	}

	if err := s.codes.Email.Verify(ctx, email, code); err != nil {
		return nil, verificationError(err)
	}

	now := s.now().UTC()
	if _, err := s.accounts.MarkEmailVerified(ctx, email, now); err != nil &&
		!errors.Is(err, account.ErrAccountNotFound) {
		return nil, infrastructureError(err)
	}
	if err := s.identities.ConfirmEmail(ctx, email); err != nil {
		s.log.Warn("failed to confirm identity email", zap.String("email", email), zap.Error(err))
	}

	result := &VerifyResult{Verified: true}
	acc, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.cache.Evict(acc.ID)
		p := s.profile(acc)
		result.Profile = &p
	case !errors.Is(err, account.ErrAccountNotFound):
		s.log.Warn("failed to load verified account", zap.String("email", email), zap.Error(err))
	}
	return result, nil
}

// ResendCode mails a fresh verification code to an unverified account. The
// outcome is the same whether or not the account exists.
func (s *Service) ResendCode(ctx context.Context, rawEmail string) error {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return err
	}
	if err := s.allow(resendKey(email), email, s.config.RateLimit.Resend); err != nil {
		return err
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, account.ErrAccountNotFound) {
			s.log.Error("failed to load account for resend", zap.String("email", email), zap.Error(err))
		}
		return nil
	}
	if acc.EmailVerified {
		return nil
	}

	s.sendVerificationCode(ctx, email)
	return nil
}

func (s *Service) CheckEmailAvailable(ctx context.Context, rawEmail string) (bool, error) {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return false, err
	}
	if err := s.allow(emailCheckKey(email), email, s.config.RateLimit.EmailCheck); err != nil {
		return false, err
	}

	exists, err := s.accounts.EmailExists(ctx, email)
	if err != nil {
		return false, infrastructureError(err)
	}
	return !exists, nil
}

func (s *Service) CheckNicknameAvailable(ctx context.Context, raw string) (bool, error) {
	nickname := strings.TrimSpace(raw)
	if !validNickname(nickname) {
		return false, validationError("nickname", "Nickname may contain letters, digits, dots, dashes and underscores")
	}
	if err := s.allow(nicknameCheckKey(nickname), nickname, s.config.RateLimit.EmailCheck); err != nil {
		return false, err
	}

	exists, err := s.accounts.NicknameExists(ctx, nickname)
	if err != nil {
		return false, infrastructureError(err)
	}
	return !exists, nil
}

type GraceStatus struct {
	Exists           bool       `json:"exists"`
	Verified         bool       `json:"verified"`
	Expired          bool       `json:"expired"`
	RemainingSeconds int        `json:"remaining_seconds"`
	Remaining        string     `json:"remaining"`
	DeletesAt        *time.Time `json:"deletes_at,omitempty"`
}

// GracePeriod reports how long an unverified account has left before the
// cleanup sweep removes it.
func (s *Service) GracePeriod(ctx context.Context, rawEmail string) (*GraceStatus, error) {
	email, err := validateEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrAccountNotFound) {
		return &GraceStatus{Expired: true, Remaining: FormatClock(0)}, nil
	}
	if err != nil {
		return nil, infrastructureError(err)
	}

	status := &GraceStatus{Exists: true, Verified: acc.EmailVerified || acc.HasLegacyPassword()}
	if status.Verified {
		status.Remaining = FormatClock(0)
		return status, nil
	}

	deletesAt := acc.CreatedAt.Add(s.config.Auth.GracePeriod)
	remaining := deletesAt.Sub(s.now())
	if remaining <= 0 {
		remaining = 0
		status.Expired = true
	}
	status.DeletesAt = &deletesAt
	status.RemainingSeconds = int(remaining / time.Second)
	status.Remaining = FormatClock(remaining)
	return status, nil
}

// FormatClock renders d as MM:SS, truncated to whole seconds.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
