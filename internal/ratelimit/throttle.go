package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/elskow/tourfurr/internal/config"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle is a per-client token bucket in front of the whole API.
type Throttle struct {
	config   config.ThrottleConfig
	visitors map[string]*visitor
	mu       sync.Mutex
	now      func() time.Time
}

func NewThrottle(cfg config.ThrottleConfig) *Throttle {
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Minute
	}
	return &Throttle{
		config:   cfg,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, exists := t.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(t.config.RequestsPerSecond), t.config.Burst)}
		t.visitors[key] = v
	}
	v.lastSeen = t.now()
	return v.limiter
}

func (t *Throttle) Allow(key string) bool {
	if t.config.RequestsPerSecond <= 0 {
		return true
	}
	return t.limiter(key).AllowN(t.now(), 1)
}

func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "Too many requests",
			})
			return
		}
		c.Next()
	}
}

func (t *Throttle) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, v := range t.visitors {
		if now.Sub(v.lastSeen) > t.config.TTL {
			delete(t.visitors, key)
			removed++
		}
	}
	return removed
}

func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
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
			t.Sweep()
		}
	}
}
