package database

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

const startupPingTimeout = 10 * time.Second

// Module opens the postgres pool and shares its *gorm.DB with every
// repository.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(cfg *config.AppConfig, log *zap.Logger) (*Manager, error) {
				return NewManager(&cfg.Database, log)
			},
			(*Manager).DB,
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lc fx.Lifecycle, manager *Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, startupPingTimeout)
			defer cancel()
			if err := manager.Ping(ctx); err != nil {
				return err
			}
			manager.logger.Info("Connected to postgres",
				zap.String("host", manager.config.Host),
				zap.String("name", manager.config.Name))
			return nil
		},
		OnStop: func(context.Context) error {
			manager.logger.Info("Closing database pool")
			return manager.Close()
		},
	})
}
