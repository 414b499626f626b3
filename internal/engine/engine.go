// Package engine assembles the event bus: journal, projectors in
// registration order, then reactors.
package engine

import (
	"fmt"

	"github.com/denhac/memberbridge/internal/config"
	customerprojector "github.com/denhac/memberbridge/internal/customer/projector"
	"github.com/denhac/memberbridge/internal/eventbus"
	eventstoredomain "github.com/denhac/memberbridge/internal/eventstore/domain"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/internal/ratelimit"
	"github.com/denhac/memberbridge/internal/reactor"
	subscriptionprojector "github.com/denhac/memberbridge/internal/subscription/projector"
	"github.com/denhac/memberbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store         eventstoredomain.Store
	Log           *zap.Logger
	Config        config.Config
	Customers     *customerprojector.Projector
	Subscriptions *subscriptionprojector.Projector
	Slack         *reactor.Slack       `optional:"true"`
	Reporter      eventbus.Reporter    `optional:"true"`
	Locker        *ratelimit.Locker    `optional:"true"`
	Tx            *db.Transactor       `optional:"true"`
	Metrics       *metrics.SyncMetrics `optional:"true"`
	OtelMetrics   *metrics.Metrics     `optional:"true"`
}

// New builds the bus. The customer projector is registered before the
// subscription projector so a CustomerDeleted updates customers first.
// The replay-only app runs without the Slack reactor.
func New(p Params) (*eventbus.Bus, error) {
	opts := eventbus.Options{
		ReplayPageSize: p.Config.Replay.PageSize,
		ReplayLockTTL:  p.Config.Replay.LockTTL,
		Reporter:       p.Reporter,
		Metrics:        p.Metrics,
		OtelMetrics:    p.OtelMetrics,
	}
	// A nil pointer must not become a non-nil interface.
	if p.Locker != nil {
		opts.Locker = p.Locker
	}
	if p.Tx != nil {
		opts.Transactor = p.Tx
	}

	bus := eventbus.New(p.Store, p.Log, opts)
	for _, proj := range []eventbus.Projector{p.Customers, p.Subscriptions} {
		if err := bus.RegisterProjector(proj); err != nil {
			return nil, fmt.Errorf("register projector: %w", err)
		}
	}
	if p.Slack != nil {
		if err := bus.RegisterReactor(p.Slack); err != nil {
			return nil, fmt.Errorf("register reactor: %w", err)
		}
	}
	return bus, nil
}

var Module = fx.Module("engine",
	fx.Provide(New),
)
