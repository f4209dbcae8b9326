package auth

import (
	"go.uber.org/fx"
)

// NewModule provides the session controller and its HTTP handler.
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			provideMailer,
			NewService,
			NewHandler,
		),
	)
}
