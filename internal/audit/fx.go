package audit

import (
	"github.com/denhac/memberbridge/internal/audit/repository"
	"github.com/denhac/memberbridge/internal/audit/service"
	"github.com/denhac/memberbridge/internal/eventbus"
	jobsdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(
		fx.Annotate(service.NewSink,
			fx.As(new(eventbus.Reporter)),
			fx.As(new(jobsdomain.Reporter)),
		),
	),
)
