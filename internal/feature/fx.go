package feature

import (
	"github.com/denhac/memberbridge/internal/feature/domain"
	"github.com/denhac/memberbridge/internal/feature/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feature.flags",
	fx.Provide(service.NewHolder),
	fx.Provide(
		func(h *service.Holder) domain.Service { return h },
		func(h *service.Holder) domain.Provider { return h },
	),
)
