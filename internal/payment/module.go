package payment

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/tourfurr/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(db *gorm.DB) Repository {
				return NewRepository(db)
			},
			func(cfg *config.AppConfig, log *zap.Logger) *Client {
				return NewClient(&cfg.Payment, log)
			},
			NewService,
			NewHandler,
		),
	)
}
