package ratelimit

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger) *Limiter {
					return NewLimiter(cfg.RateLimit.StaleAfter, log.Named("ratelimit"))
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig) *Throttle {
					return NewThrottle(cfg.RateLimit.Throttle)
				},
			),
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	cfg *config.AppConfig,
	limiter *Limiter,
	throttle *Throttle,
	logger *zap.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			interval := cfg.RateLimit.CleanupInterval
			wg.Add(2)
			go func() {
				defer wg.Done()
				limiter.Run(ctx, interval)
			}()
			go func() {
				defer wg.Done()
				throttle.Run(ctx, interval)
			}()
			logger.Info("Rate limit sweeper started", zap.Duration("interval", interval))
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			wg.Wait()
			return nil
		},
	})
}
