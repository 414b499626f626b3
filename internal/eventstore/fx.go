package eventstore

import (
	"github.com/denhac/memberbridge/internal/eventstore/repository"
	"github.com/denhac/memberbridge/internal/eventstore/service"
	"go.uber.org/fx"
)

var Module = fx.Module("eventstore.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
