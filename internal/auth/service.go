package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/mail"
	"github.com/elskow/tourfurr/internal/ratelimit"
	"github.com/elskow/tourfurr/internal/security"
	"github.com/elskow/tourfurr/internal/storage"
	"github.com/elskow/tourfurr/internal/verification"
)

// CodeMailer delivers one-time codes. *mail.Mailer satisfies it.
type CodeMailer interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
	SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

const (
	maxNicknameLength = 32
	maxPhoneLength    = 32
	maxTelegramLength = 64
)

var nicknamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.\-]+$`)

type Params struct {
	fx.In

	Config     *config.AppConfig
	Logger     *zap.Logger
	Identities *identity.Service
	Accounts   account.Repository
	Cache      *account.Cache
	Codes      *verification.Engines
	Limiter    *ratelimit.Limiter
	Audit      *security.AuditLog
	Legacy     *security.LegacyHasher
	Mailer     CodeMailer
	Avatars    *storage.Avatars
}

// Service is the session controller: it drives accounts from registration
// through verification to login and owns the legacy credential migration.
type Service struct {
	config     *config.AppConfig
	log        *zap.Logger
	identities *identity.Service
	accounts   account.Repository
	cache      *account.Cache
	codes      *verification.Engines
	limiter    *ratelimit.Limiter
	audit      *security.AuditLog
	legacy     *security.LegacyHasher
	mailer     CodeMailer
	avatars    *storage.Avatars
	now        func() time.Time
}

func NewService(p Params) *Service {
	return &Service{
		config:     p.Config,
		log:        p.Logger.Named("auth"),
		identities: p.Identities,
		accounts:   p.Accounts,
		cache:      p.Cache,
		codes:      p.Codes,
		limiter:    p.Limiter,
		audit:      p.Audit,
		legacy:     p.Legacy,
		mailer:     p.Mailer,
		avatars:    p.Avatars,
		now:        time.Now,
	}
}

func provideMailer(m *mail.Mailer) CodeMailer {
	return m
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Nickname        string `json:"nickname"`
	Phone           string `json:"phone"`
	Telegram        string `json:"telegram"`
	Description     string `json:"description"`
	HasPets         bool   `json:"has_pets"`
	Pets            string `json:"pets"`
	Allergies       string `json:"allergies"`
	EmailSubscribed bool   `json:"email_subscribed"`
	AgreeRules      bool   `json:"agree_rules"`
	AgreePrivacy    bool   `json:"agree_privacy"`
}

type RegisterResult struct {
	AccountID     string    `json:"account_id"`
	Email         string    `json:"email"`
	CodeSent      bool      `json:"code_sent"`
	DeliveryLimit bool      `json:"delivery_rate_limited,omitempty"`
	CodeExpiresAt time.Time `json:"code_expires_at"`
	DeletesAt     time.Time `json:"deletes_at"`
}

type LoginResult struct {
	Profile  account.Profile   `json:"profile"`
	Session  *identity.Session `json:"session"`
	Migrated bool              `json:"migrated,omitempty"`
}

type Delivery struct {
	Sent        bool
	RateLimited bool
	ExpiresAt   time.Time
}

// Rate-limit keys, namespaced per operation class.
func loginKey(email string) string        { return "login_" + email }
func registerKey(email string) string     { return "register_" + email }
func resetKey(email string) string        { return "password_reset_" + email }
func updateKey(email string) string       { return "password_update_" + email }
func resendKey(email string) string       { return "resend_" + email }
func emailCheckKey(email string) string   { return "email_check_" + email }
func nicknameCheckKey(nick string) string { return "nickname_check_" + strings.ToLower(nick) }

func (s *Service) allow(key, identifier string, policy config.RateLimitPolicy) error {
	if s.limiter.Allow(key, policy) {
		return nil
	}
	wait := s.limiter.BlockedFor(key)
	if wait <= 0 {
		wait = policy.BlockDuration
	}
	s.audit.Record(security.EventRateLimit, identifier, "", key)
	return rateLimitedError(wait)
}

func (s *Service) profile(a *account.Account) account.Profile {
	return account.ToProfile(a, s.avatars.URL)
}

// loadAccount reads through the profile cache.
func (s *Service) loadAccount(ctx context.Context, id string) (*account.Account, error) {
	if a, ok := s.cache.Get(id); ok {
		return a, nil
	}
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Put(a)
	return a, nil
}

// sendVerificationCode supersedes outstanding codes and mails a fresh one.
// Delivery problems are logged and reported, never returned as errors.
func (s *Service) sendVerificationCode(ctx context.Context, email string) Delivery {
	return s.deliver(ctx, email, s.codes.Email, s.mailer.SendVerificationCode)
}

func (s *Service) sendResetCode(ctx context.Context, email string) Delivery {
	return s.deliver(ctx, email, s.codes.PasswordReset, s.mailer.SendPasswordResetCode)
}

func (s *Service) deliver(
	ctx context.Context,
	email string,
	engine *verification.Engine,
	send func(ctx context.Context, to, code string, ttl time.Duration) error,
) Delivery {
	issued, err := engine.Issue(ctx, email)
	if err != nil {
		s.log.Error("failed to issue code", zap.String("email", email), zap.Error(err))
		return Delivery{}
	}

	d := Delivery{ExpiresAt: issued.ExpiresAt}
	if err := send(ctx, email, issued.Code, engine.TTL()); err != nil {
		d.RateLimited = errors.Is(err, mail.ErrRateLimited)
		s.log.Warn("failed to deliver code",
			zap.String("email", email),
			zap.Bool("rate_limited", d.RateLimited),
			zap.Error(err))
		return d
	}
	d.Sent = true
	return d
}

// removeAccount deletes everything owned by a. Missing pieces are skipped so
// a half-removed account can be removed again.
func (s *Service) removeAccount(ctx context.Context, a *account.Account) error {
	if err := s.identities.Delete(ctx, a.ID); err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
		return err
	}
	if err := s.avatars.Remove(ctx, a.AvatarKey); err != nil {
		s.log.Warn("failed to remove avatar", zap.String("account_id", a.ID), zap.Error(err))
	}
	if err := s.codes.Email.Purge(ctx, a.Email); err != nil {
		s.log.Warn("failed to purge verification codes", zap.String("email", a.Email), zap.Error(err))
	}
	if err := s.codes.PasswordReset.Purge(ctx, a.Email); err != nil {
		s.log.Warn("failed to purge reset codes", zap.String("email", a.Email), zap.Error(err))
	}
	if err := s.accounts.Delete(ctx, a.ID); err != nil && !errors.Is(err, account.ErrAccountNotFound) {
		return err
	}
	s.cache.Evict(a.ID)
	return nil
}

func validNickname(nickname string) bool {
	n := utf8.RuneCountInString(nickname)
	return n >= 1 && n <= maxNicknameLength && nicknamePattern.MatchString(nickname)
}

func validateEmail(raw string) (string, error) {
	email := security.SanitizeEmail(raw)
	if !security.ValidEmail(email) {
		return "", validationError("email", "Enter a valid email address")
	}
	return email, nil
}

func weakPasswordError(strength security.PasswordStrength) *Error {
	return &Error{
		Kind:     KindValidation,
		Field:    "password",
		Message:  "Password is too weak",
		Feedback: strength.Feedback,
	}
}
