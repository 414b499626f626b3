package chat

import (
	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Bucket  *ratelimit.TokenBucket `optional:"true"`
	Metrics *metrics.Metrics       `optional:"true"`
}

// NewWorkspace wraps the workspace client in the shared throttle when redis
// is configured.
func NewWorkspace(p Params) Workspace {
	var ws Workspace = NewLogWorkspace(p.Log)
	if p.Bucket == nil || p.Config.Chat.RatePerSecond <= 0 || p.Config.Chat.Burst <= 0 {
		return ws
	}
	return NewThrottle(ws, p.Bucket, p.Config.Chat.RatePerSecond, p.Config.Chat.Burst, p.Log, p.Metrics)
}

var Module = fx.Module("chat",
	fx.Provide(NewWorkspace),
)
