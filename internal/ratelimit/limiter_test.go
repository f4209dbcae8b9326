package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

var loginPolicy = config.RateLimitPolicy{
	MaxAttempts:   5,
	Window:        15 * time.Minute,
	BlockDuration: 30 * time.Minute,
}

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(time.Hour, zap.NewNop())
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_LoginPolicy(t *testing.T) {
	l, now := newTestLimiter(t)

	for i := 1; i <= 5; i++ {
		assert.True(t, l.Allow("a@b.com", loginPolicy), "attempt %d", i)
	}
	assert.False(t, l.Allow("a@b.com", loginPolicy), "sixth attempt is blocked")
	assert.Equal(t, 30*60, l.BlockedSeconds("a@b.com"))

	*now = now.Add(10 * time.Minute)
	assert.False(t, l.Allow("a@b.com", loginPolicy), "still locked out")
	assert.Equal(t, 20*60, l.BlockedSeconds("a@b.com"))

	*now = now.Add(20 * time.Minute)
	assert.True(t, l.Allow("a@b.com", loginPolicy), "lockout elapsed")
	assert.Zero(t, l.BlockedFor("a@b.com"))
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(t)

	for i := 0; i < 6; i++ {
		l.Allow("a@b.com", loginPolicy)
	}
	assert.False(t, l.Allow("a@b.com", loginPolicy))

	l.Reset("a@b.com")
	assert.True(t, l.Allow("a@b.com", loginPolicy))
}

func TestLimiter_WindowRestarts(t *testing.T) {
	l, now := newTestLimiter(t)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("a@b.com", loginPolicy))
	}
	*now = now.Add(16 * time.Minute)
	assert.True(t, l.Allow("a@b.com", loginPolicy), "a new window starts after the old one elapses")
}

func TestLimiter_IdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	policy := config.RateLimitPolicy{MaxAttempts: 1, Window: time.Minute, BlockDuration: time.Minute}

	assert.True(t, l.Allow("a", policy))
	assert.False(t, l.Allow("a", policy))
	assert.True(t, l.Allow("b", policy))
	assert.Zero(t, l.BlockedSeconds("unknown"))
}

func TestLimiter_Sweep(t *testing.T) {
	l, now := newTestLimiter(t)
	strict := config.RateLimitPolicy{MaxAttempts: 1, Window: time.Hour, BlockDuration: 3 * time.Hour}

	l.Allow("stale", loginPolicy)
	l.Allow("blocked", strict)
	l.Allow("blocked", strict)

	*now = now.Add(61 * time.Minute)
	l.Allow("fresh", loginPolicy)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.Allow("blocked", strict), "blocked entries survive the sweep")
}
