package customer

import (
	"github.com/denhac/memberbridge/internal/customer/projector"
	"github.com/denhac/memberbridge/internal/customer/repository"
	"github.com/denhac/memberbridge/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(projector.New),
)
