// Package ratelimit bounds how often sensitive operations run per identifier
// and how fast a single client may hit the API. State is process-local: it
// resets on restart and is not shared between instances.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

type entry struct {
	attempts     int
	firstAttempt time.Time
	blockedUntil time.Time
}

// Limiter applies sliding-window-with-lockout policies keyed by identifier.
type Limiter struct {
	entries    map[string]*entry
	mu         sync.Mutex
	staleAfter time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewLimiter(staleAfter time.Duration, log *zap.Logger) *Limiter {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Limiter{
		entries:    make(map[string]*entry),
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log,
	}
}

// Allow records an attempt for id and reports whether it may proceed.
func (l *Limiter) Allow(id string, policy config.RateLimitPolicy) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[id]
	if ok && now.Before(e.blockedUntil) {
		return false
	}

	if !ok || now.Sub(e.firstAttempt) > policy.Window {
		l.entries[id] = &entry{attempts: 1, firstAttempt: now}
		return true
	}

	e.attempts++
	if e.attempts > policy.MaxAttempts {
		e.blockedUntil = now.Add(policy.BlockDuration)
		l.log.Warn("rate limit exceeded",
			zap.String("identifier", id),
			zap.Int("attempts", e.attempts),
			zap.Time("blocked_until", e.blockedUntil))
		return false
	}
	return true
}

// Reset forgets id, typically after the guarded operation succeeded.
func (l *Limiter) Reset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, id)
}

// BlockedFor returns the lockout left for id, or zero.
func (l *Limiter) BlockedFor(id string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return 0
	}
	if left := e.blockedUntil.Sub(l.now()); left > 0 {
		return left
	}
	return 0
}

func (l *Limiter) BlockedSeconds(id string) int {
	return int(math.Ceil(l.BlockedFor(id).Seconds()))
}

// Sweep drops entries that are unblocked and older than the stale horizon.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, e := range l.entries {
		if !now.Before(e.blockedUntil) && now.Sub(e.firstAttempt) > l.staleAfter {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps on every tick until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.log.Debug("swept rate limit entries", zap.Int("removed", n))
			}
		}
	}
}
