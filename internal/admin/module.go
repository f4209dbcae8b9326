package admin

import (
	"go.uber.org/fx"

	"github.com/elskow/tourfurr/internal/mail"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(m *mail.Mailer) DecisionMailer { return m },
			NewService,
			NewHandler,
		),
	)
}
