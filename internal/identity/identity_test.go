package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/tourfurr/internal/config"
)

func newTestLogger(t *testing.T) *zap.Logger {
	logger, err := zap.NewDevelopment()
	assert.NoError(t, err)
	return logger
}

func newTestConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:        "test-secret-key",
		TokenExpiration:  time.Hour,
		PasswordHashCost: bcrypt.MinCost,
		Issuer:           "tourfurr-test",
		CookieName:       "auth_token",
	}
}

func newTestService(t *testing.T) (*Service, *MockRepository) {
	repo := NewMockRepository()
	return NewService(newTestConfig(), newTestLogger(t), repo), repo
}
