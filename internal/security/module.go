package security

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(log *zap.Logger) *AuditLog {
					return NewAuditLog(DefaultAuditCapacity, log)
				},
			),
			NewCSRFManager,
			NewLegacyHasher,
		),
	)
}
