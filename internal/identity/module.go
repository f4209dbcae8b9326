package identity

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/tourfurr/internal/config"
)

// NewModule returns the identity module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger, repo Repository) *Service {
					return NewService(&cfg.Auth, log, repo)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, svc *Service) *Middleware {
					return NewMiddleware(&cfg.Auth, svc)
				},
			),
		),
	)
}
