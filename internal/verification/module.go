package verification

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/tourfurr/internal/config"
)

// Engines groups the email-verification and password-reset code engines.
type Engines struct {
	Email         *Engine
	PasswordReset *Engine
}

func NewEngines(db *gorm.DB, cfg *config.AppConfig, log *zap.Logger) *Engines {
	return &Engines{
		Email: NewEngine("email", NewRepository(db, EmailTable),
			cfg.Verification.Email, cfg.Auth.JWTSecret, log),
		PasswordReset: NewEngine("password_reset", NewRepository(db, PasswordResetTable),
			cfg.Verification.PasswordReset, cfg.Auth.JWTSecret, log),
	}
}

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(NewEngines),
	)
}
