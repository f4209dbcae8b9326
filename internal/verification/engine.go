package verification

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

// Engine issues and redeems one-time numeric codes for a single code table.
type Engine struct {
	name       string
	repository Repository
	policy     config.CodePolicy
	secret     []byte
	log        *zap.Logger
	now        func() time.Time
	random     io.Reader
}

func NewEngine(name string, repo Repository, policy config.CodePolicy, fallbackSecret string, log *zap.Logger) *Engine {
	secret := policy.Secret
	if secret == "" {
		secret = fallbackSecret
	}
	return &Engine{
		name:       name,
		repository: repo,
		policy:     policy,
		secret:     []byte(secret),
		log:        log.With(zap.String("codes", name)),
		now:        time.Now,
		random:     rand.Reader,
	}
}

func (e *Engine) MaxAttempts() int {
	return e.policy.MaxAttempts
}

func (e *Engine) TTL() time.Duration {
	return e.policy.TTL
}

// Create stores a fresh code for email without touching older ones.
func (e *Engine) Create(ctx context.Context, email string) (*Issued, error) {
	plain, err := e.generate()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := e.now().UTC()
	code := &Code{
		Email:     email,
		CodeHash:  e.digest(email, plain),
		CreatedAt: now,
		ExpiresAt: now.Add(e.policy.TTL),
	}
	if err := e.repository.Create(ctx, code); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	return &Issued{Code: plain, ExpiresAt: code.ExpiresAt}, nil
}

// Issue invalidates every outstanding code for email and creates a new one,
// leaving exactly one redeemable code.
func (e *Engine) Issue(ctx context.Context, email string) (*Issued, error) {
	if err := e.InvalidateOutstanding(ctx, email); err != nil {
		return nil, err
	}
	return e.Create(ctx, email)
}

func (e *Engine) InvalidateOutstanding(ctx context.Context, email string) error {
	n, err := e.repository.InvalidateOutstanding(ctx, email)
	if err != nil {
		return fmt.Errorf("invalidate codes: %w", err)
	}
	if n > 0 {
		e.log.Debug("invalidated outstanding codes", zap.String("email", email), zap.Int64("count", n))
	}
	return nil
}

// Verify redeems submitted against the newest unused code for email. The
// attempt is reserved in the store before the comparison, so concurrent
// guesses cannot exceed the cap.
func (e *Engine) Verify(ctx context.Context, email, submitted string) error {
	code, err := e.repository.Latest(ctx, email)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	if code.Expired(now) {
		return ErrCodeExpired
	}
	if code.Attempts >= e.policy.MaxAttempts {
		return ErrAttemptsExceeded
	}

	attempts, err := e.repository.ReserveAttempt(ctx, code.ID, false, e.policy.MaxAttempts)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if attempts == 0 {
		// Exhausted or spent by a concurrent request.
		return ErrAttemptsExceeded
	}

	if !e.matches(email, submitted, code.CodeHash) {
		return &MismatchError{Remaining: max(e.policy.MaxAttempts-attempts, 0)}
	}

	spent, err := e.repository.MarkUsed(ctx, code.ID, now)
	if err != nil {
		return fmt.Errorf("spend code: %w", err)
	}
	if !spent {
		return ErrCodeNotFound
	}
	return nil
}

// ConfirmedWithin reports whether submitted matches a code for email that was
// redeemed no longer than window ago. Every call spends one attempt of each
// confirmed code, so a confirmation can be checked at most MaxAttempts times.
func (e *Engine) ConfirmedWithin(ctx context.Context, email, submitted string, window time.Duration) (bool, error) {
	codes, err := e.repository.ListVerifiedSince(ctx, email, e.now().UTC().Add(-window))
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if code.Attempts >= e.policy.MaxAttempts {
			continue
		}
		attempts, err := e.repository.ReserveAttempt(ctx, code.ID, true, e.policy.MaxAttempts)
		if err != nil {
			return false, fmt.Errorf("record attempt: %w", err)
		}
		if attempts > 0 && e.matches(email, submitted, code.CodeHash) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) Purge(ctx context.Context, email string) error {
	return e.repository.DeleteByEmail(ctx, email)
}

// PurgeExpired deletes codes that expired more than retain ago.
func (e *Engine) PurgeExpired(ctx context.Context, retain time.Duration) (int64, error) {
	return e.repository.DeleteExpiredBefore(ctx, e.now().UTC().Add(-retain))
}

func (e *Engine) generate() (string, error) {
	length := e.policy.Length
	if length <= 0 {
		length = 6
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))

	n, err := rand.Int(e.random, span)
	if err != nil {
		return "", err
	}
	return n.Add(n, low).String(), nil
}

func (e *Engine) digest(email, code string) string {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func (e *Engine) matches(email, submitted, stored string) bool {
	want, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(e.digest(email, submitted))
	return hmac.Equal(got, want)
}

// IsVerificationError reports whether err is one of the code outcomes rather
// than an infrastructure failure.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrCodeExpired) ||
		errors.Is(err, ErrAttemptsExceeded) ||
		errors.Is(err, ErrCodeMismatch)
}
