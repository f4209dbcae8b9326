package account

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/elskow/tourfurr/internal/config"
)

func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig) *Cache {
					return NewCache(cfg.Auth.ProfileCacheTTL)
				},
			),
		),
	)
}
