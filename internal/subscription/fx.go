package subscription

import (
	"github.com/denhac/memberbridge/internal/subscription/projector"
	"github.com/denhac/memberbridge/internal/subscription/repository"
	"github.com/denhac/memberbridge/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(projector.New),
)
