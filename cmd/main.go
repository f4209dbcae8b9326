package main

import (
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/app"
	"github.com/elskow/tourfurr/internal/server"
)

// Schema upgrades and the team seed run inside OnStart hooks.
const startTimeout = time.Minute

func main() {
	if os.Getenv("APP_ENV") == "" {
		os.Setenv("APP_ENV", server.EnvDevelopment)
	}

	fx.New(
		app.Module(),
		fx.StartTimeout(startTimeout),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	).Run()
}
