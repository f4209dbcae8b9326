package security

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	CSRFHeader        = "X-CSRF-Token"
	csrfTokenBytes    = 32
	csrfTokenLifetime = time.Hour
	csrfMaxTokens     = 10000
)

// CSRFManager issues single-use anti-forgery tokens. At most capacity
// tokens are outstanding; the oldest is evicted first.
type CSRFManager struct {
	tokens   map[string]time.Time
	order    []string
	mu       sync.Mutex
	lifetime time.Duration
	capacity int
	now      func() time.Time
}

func NewCSRFManager() *CSRFManager {
	return &CSRFManager{
		tokens:   make(map[string]time.Time),
		lifetime: csrfTokenLifetime,
		capacity: csrfMaxTokens,
		now:      time.Now,
	}
}

func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (m *CSRFManager) Generate() (string, error) {
	token, err := GenerateToken(csrfTokenBytes)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = m.now()
	m.order = append(m.order, token)
	m.pruneLocked()
	return token, nil
}

// Validate consumes token. A token is accepted at most once and only within
// its lifetime.
func (m *CSRFManager) Validate(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	issued, ok := m.tokens[token]
	if !ok {
		return false
	}
	if m.now().Sub(issued) >= m.lifetime {
		delete(m.tokens, token)
		return false
	}
	delete(m.tokens, token)
	return true
}

// pruneLocked drops consumed, expired and over-capacity tokens from the
// front of the issue order.
func (m *CSRFManager) pruneLocked() {
	now := m.now()
	for len(m.order) > 0 {
		oldest := m.order[0]
		issued, live := m.tokens[oldest]
		if live && now.Sub(issued) <= m.lifetime && len(m.tokens) <= m.capacity {
			break
		}
		delete(m.tokens, oldest)
		m.order = m.order[1:]
	}

	// Consumed tokens behind a live one linger in order until compacted.
	if len(m.order) > 2*m.capacity {
		kept := make([]string, 0, len(m.tokens))
		for _, token := range m.order {
			if _, live := m.tokens[token]; live {
				kept = append(kept, token)
			}
		}
		m.order = kept
	}
}

// Middleware rejects requests without a valid token when enabled.
func (m *CSRFManager) Middleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		if !m.Validate(c.GetHeader(CSRFHeader)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Invalid or expired CSRF token",
			})
			return
		}
		c.Next()
	}
}

// Handler hands out a fresh token.
func (m *CSRFManager) Handler(c *gin.Context) {
	token, err := m.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}
