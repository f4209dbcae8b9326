package migration

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

// Module migrates the schema up on start. A database ahead of this build is
// left alone.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(config *config.AppConfig) (*Migrator, error) {
					return NewMigrator(&config.Database)
				},
			),
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	migrator *Migrator,
	logger *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			current, err := migrator.CurrentVersion()
			if err != nil {
				return fmt.Errorf("failed to get current migration version: %w", err)
			}
			latest, err := migrator.LatestVersion()
			if err != nil {
				return fmt.Errorf("failed to get latest migration version: %w", err)
			}

			logger.Info("Database migration status",
				zap.Int64("current_version", current),
				zap.Int64("latest_version", latest))

			switch {
			case current < latest:
				logger.Info("Upgrading database schema",
					zap.Int64("from_version", current),
					zap.Int64("to_version", latest))
				return migrator.Up()
			case current > latest:
				logger.Warn("Database schema is newer than this build",
					zap.Int64("current_version", current),
					zap.Int64("latest_version", latest))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return migrator.Close()
		},
	})
}
