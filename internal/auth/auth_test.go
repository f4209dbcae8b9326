package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/ratelimit"
	"github.com/elskow/tourfurr/internal/security"
	"github.com/elskow/tourfurr/internal/storage"
	"github.com/elskow/tourfurr/internal/verification"
)

const strongPassword = "Str0ng!Pass"

// recordingMailer keeps every code it is asked to send, per recipient.
type recordingMailer struct {
	verification map[string][]string
	reset        map[string][]string
	err          error
	mu           sync.Mutex
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{
		verification: make(map[string][]string),
		reset:        make(map[string][]string),
	}
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification[to] = append(m.verification[to], code)
	return m.err
}

func (m *recordingMailer) SendPasswordResetCode(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[to] = append(m.reset[to], code)
	return m.err
}

func (m *recordingMailer) lastVerification(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.verification[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (m *recordingMailer) lastReset(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := m.reset[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (m *recordingMailer) sent(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.verification[email])
}

type fixture struct {
	service    *Service
	config     *config.AppConfig
	accounts   *account.MockRepository
	identities *identity.MockRepository
	sessions   *identity.Service
	mailer     *recordingMailer
	audit      *security.AuditLog
	store      *storage.MemoryStore
	legacy     *security.LegacyHasher
}

func newTestConfig() *config.AppConfig {
	policy := config.CodePolicy{Length: 6, TTL: 15 * time.Minute, MaxAttempts: 3, Secret: "code-secret"}
	return &config.AppConfig{
		Env: "testing",
		Auth: config.AuthConfig{
			JWTSecret:          "test-secret-key",
			TokenExpiration:    time.Hour,
			PasswordHashCost:   bcrypt.MinCost,
			Issuer:             "tourfurr-test",
			CookieName:         "auth_token",
			GracePeriod:        15 * time.Minute,
			ResetConfirmWindow: 10 * time.Minute,
			ProfileCacheTTL:    time.Minute,
		},
		Verification: config.VerificationConfig{
			Email:         policy,
			PasswordReset: policy,
		},
		RateLimit: config.RateLimitConfig{
			Login:          config.RateLimitPolicy{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute},
			Register:       config.RateLimitPolicy{MaxAttempts: 3, Window: time.Hour, BlockDuration: 2 * time.Hour},
			PasswordReset:  config.RateLimitPolicy{MaxAttempts: 3, Window: time.Hour, BlockDuration: time.Hour},
			PasswordUpdate: config.RateLimitPolicy{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 30 * time.Minute},
			EmailCheck:     config.RateLimitPolicy{MaxAttempts: 20, Window: time.Minute, BlockDuration: 5 * time.Minute},
			Resend:         config.RateLimitPolicy{MaxAttempts: 5, Window: 15 * time.Minute, BlockDuration: 15 * time.Minute},
		},
		Storage: config.StorageConfig{MaxAvatarBytes: 1 << 20},
	}
}

func newFixture(t *testing.T) *fixture {
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	cfg := newTestConfig()
	f := &fixture{
		config:     cfg,
		accounts:   account.NewMockRepository(),
		identities: identity.NewMockRepository(),
		mailer:     newRecordingMailer(),
		audit:      security.NewAuditLog(100, logger),
		store:      storage.NewMemoryStore("https://cdn.test"),
		legacy:     security.NewLegacyHasher(),
	}

	f.sessions = identity.NewService(&cfg.Auth, logger, f.identities)
	f.service = NewService(Params{
		Config:     cfg,
		Logger:     logger,
		Identities: f.sessions,
		Accounts:   f.accounts,
		Cache:      account.NewCache(cfg.Auth.ProfileCacheTTL),
		Codes: &verification.Engines{
			Email: verification.NewEngine("email", verification.NewMockRepository(),
				cfg.Verification.Email, cfg.Auth.JWTSecret, logger),
			PasswordReset: verification.NewEngine("password_reset", verification.NewMockRepository(),
				cfg.Verification.PasswordReset, cfg.Auth.JWTSecret, logger),
		},
		Limiter: ratelimit.NewLimiter(time.Hour, logger),
		Audit:   f.audit,
		Legacy:  f.legacy,
		Mailer:  f.mailer,
		Avatars: storage.NewAvatars(f.store, cfg.Storage.MaxAvatarBytes),
	})
	return f
}

func registerRequest(email, nickname string) RegisterRequest {
	return RegisterRequest{
		Email:        email,
		Password:     strongPassword,
		Nickname:     nickname,
		Phone:        "+79990000000",
		Telegram:     "@" + nickname,
		AgreeRules:   true,
		AgreePrivacy: true,
	}
}

// registerVerified registers email and redeems the mailed code.
func (f *fixture) registerVerified(t *testing.T, email, nickname string) *RegisterResult {
	ctx := context.Background()
	result, err := f.service.Register(ctx, registerRequest(email, nickname))
	require.NoError(t, err)
	_, err = f.service.Verify(ctx, email, f.mailer.lastVerification(email))
	require.NoError(t, err)
	return result
}

// putLegacy stores an account that only has a legacy password hash.
func (f *fixture) putLegacy(t *testing.T, id, email, nickname, password string) {
	hash, err := f.legacy.Hash(password)
	require.NoError(t, err)
	f.accounts.Put(&account.Account{
		ID:                 id,
		Email:              email,
		Nickname:           nickname,
		LegacyPasswordHash: &hash,
		Status:             account.StatusApproved,
		CreatedAt:          time.Now().Add(-365 * 24 * time.Hour),
	})
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *auth.Error, got %T: %v", err, err)
	require.Equal(t, kind, e.Kind, e.Message)
	return e
}
