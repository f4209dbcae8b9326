package storage

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger) (Store, error) {
					if !cfg.Storage.Enabled {
						log.Warn("Object storage disabled, avatars are kept in memory")
						return NewMemoryStore(cfg.Storage.PublicBaseURL), nil
					}
					ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
					defer cancel()
					return NewS3Store(ctx, &cfg.Storage)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, store Store) *Avatars {
					return NewAvatars(store, cfg.Storage.MaxAvatarBytes)
				},
			),
		),
	)
}
