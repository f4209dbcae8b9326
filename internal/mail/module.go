package mail

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(cfg *config.AppConfig, log *zap.Logger) (Sender, error) {
					return NewSender(&cfg.Mail, log)
				},
			),
			fx.Annotate(
				func(cfg *config.AppConfig, sender Sender, log *zap.Logger) (*Mailer, error) {
					return NewMailer(sender, cfg.Server.PublicURL, log)
				},
			),
		),
	)
}
