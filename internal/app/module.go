package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/admin"
	"github.com/elskow/tourfurr/internal/auth"
	"github.com/elskow/tourfurr/internal/captcha"
	"github.com/elskow/tourfurr/internal/cleanup"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/database"
	"github.com/elskow/tourfurr/internal/guard"
	"github.com/elskow/tourfurr/internal/identity"
	"github.com/elskow/tourfurr/internal/mail"
	"github.com/elskow/tourfurr/internal/migration"
	"github.com/elskow/tourfurr/internal/payment"
	"github.com/elskow/tourfurr/internal/ratelimit"
	"github.com/elskow/tourfurr/internal/security"
	"github.com/elskow/tourfurr/internal/server"
	"github.com/elskow/tourfurr/internal/storage"
	"github.com/elskow/tourfurr/internal/team"
	"github.com/elskow/tourfurr/internal/verification"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		// Configuration and logging
		fx.Provide(server.LoadConfig),
		fx.Provide(newLogger),

		// Persistence
		database.Module(),
		migration.Module(),
		account.NewModule(),
		identity.NewModule(),
		verification.NewModule(),

		// Shared infrastructure
		ratelimit.Module(),
		security.Module(),
		mail.Module(),
		storage.Module(),
		captcha.Module(),

		// Features
		auth.NewModule(),
		guard.Module(),
		admin.Module(),
		payment.Module(),
		team.Module(),
		cleanup.Module(),

		// HTTP routes
		routes(
			func(h *auth.Handler) server.RouteRegistrar { return h },
			func(h *guard.Handler) server.RouteRegistrar { return h },
			func(h *admin.Handler) server.RouteRegistrar { return h },
			func(h *payment.Handler) server.RouteRegistrar { return h },
			func(h *team.Handler) server.RouteRegistrar { return h },
			func(h *cleanup.Handler) server.RouteRegistrar { return h },
		),

		// Server
		fx.Provide(
			func(m *database.Manager) server.Pinger { return m },
			server.NewServer,
		),

		// Start the server
		fx.Invoke(registerHooks),
	)
}

// routes feeds each handler into the server's route group.
func routes(constructors ...any) fx.Option {
	opts := make([]fx.Option, 0, len(constructors))
	for _, c := range constructors {
		opts = append(opts, fx.Provide(fx.Annotate(c, fx.ResultTags(`group:"routes"`))))
	}
	return fx.Options(opts...)
}

func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	env := cfg.Env
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	return server.NewLoggerWithConfig(env, cfg.Log)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	cfg *config.AppConfig,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			if cfg.Server.ShutdownTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
				defer cancel()
			}
			return srv.Stop(ctx)
		},
	})
}
