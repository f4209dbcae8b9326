package captcha

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger) *Verifier {
					return NewVerifier(&cfg.Turnstile, log)
				},
			),
		),
	)
}
