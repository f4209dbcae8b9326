package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elskow/tourfurr/internal/config"
)

type contextKey string

const (
	// SubjectContextKey holds the authenticated identity id.
	SubjectContextKey contextKey = "identity"
	// EmailContextKey holds the email carried by the session token.
	EmailContextKey contextKey = "identity_email"
)

var ErrNoSession = errors.New("no session")

type Middleware struct {
	config  *config.AuthConfig
	service *Service
}

func NewMiddleware(config *config.AuthConfig, service *Service) *Middleware {
	return &Middleware{config: config, service: service}
}

// RequireSession rejects requests without a valid bearer token or session
// cookie.
func (m *Middleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.authenticate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authentication required",
			})
			return
		}
		m.attach(c, claims)
		c.Next()
	}
}

// OptionalSession attaches the session when present and lets anonymous
// requests through.
func (m *Middleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := m.authenticate(c); err == nil {
			m.attach(c, claims)
		}
		c.Next()
	}
}

func (m *Middleware) authenticate(c *gin.Context) (*Claims, error) {
	token := TokenFromRequest(c.Request, m.config.CookieName)
	if token == "" {
		return nil, ErrNoSession
	}
	return m.service.ValidateToken(token)
}

func (m *Middleware) attach(c *gin.Context, claims *Claims) {
	c.Set(string(SubjectContextKey), claims.Subject)
	c.Set(string(EmailContextKey), claims.Email)
	ctx := context.WithValue(c.Request.Context(), SubjectContextKey, claims.Subject)
	ctx = context.WithValue(ctx, EmailContextKey, claims.Email)
	c.Request = c.Request.WithContext(ctx)
}

// TokenFromRequest prefers the Authorization header over the session cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookieName == "" {
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func SubjectFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(SubjectContextKey).(string)
	if !ok || subject == "" {
		return "", ErrNoSession
	}
	return subject, nil
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(EmailContextKey).(string)
	return email
}
