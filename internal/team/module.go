package team

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(db *gorm.DB) Repository {
				return NewRepository(db)
			},
			NewService,
			NewHandler,
		),
		fx.Invoke(registerHooks),
	)
}

func registerHooks(lc fx.Lifecycle, service *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return service.Seed(ctx)
		},
	})
}
