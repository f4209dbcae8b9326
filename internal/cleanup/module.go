package cleanup

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/storage"
	"github.com/elskow/tourfurr/internal/verification"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewMetricsCollector,
			fx.Annotate(
				func(
					cfg *config.AppConfig,
					accounts account.Repository,
					cache *account.Cache,
					identities *identity.Service,
					avatars *storage.Avatars,
					codes *verification.Engines,
					metrics *MetricsCollector,
					log *zap.Logger,
				) *Sweeper {
					return NewSweeper(cfg, accounts, cache, identities, avatars, metrics, log,
						codes.Email, codes.PasswordReset)
				},
			),
			NewScheduler,
			NewHandler,
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lc fx.Lifecycle, scheduler *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
