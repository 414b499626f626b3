package reactor

import "go.uber.org/fx"

var Module = fx.Module("reactor",
	fx.Provide(NewSlack),
)
