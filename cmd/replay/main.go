// Command replay rebuilds the read models from the journal and exits. Set
// REPLAY_PROJECTORS to a comma separated list to rebuild only some of them.
package main

import (
	"context"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/denhac/memberbridge/internal/audit"
	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/customer"
	"github.com/denhac/memberbridge/internal/engine"
	"github.com/denhac/memberbridge/internal/eventbus"
	"github.com/denhac/memberbridge/internal/eventstore"
	"github.com/denhac/memberbridge/internal/migration"
	"github.com/denhac/memberbridge/internal/observability"
	"github.com/denhac/memberbridge/internal/ratelimit"
	"github.com/denhac/memberbridge/internal/subscription"
	"github.com/denhac/memberbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		eventstore.Module,
		customer.Module,
		subscription.Module,
		audit.Module,
		engine.Module,

		fx.Invoke(runReplay),
	)
	if err := app.Err(); err != nil {
		os.Exit(1)
	}
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

func runReplay(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, bus *eventbus.Bus, log *zap.Logger) {
	log = log.Named("replay")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				result, err := bus.Replay(context.Background(), cfg.Replay.Projectors...)
				if err != nil {
					log.Error("replay failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				log.Info("replay complete",
					zap.Strings("projectors", result.Projectors),
					zap.Int("events", result.Events),
					zap.Int("failures", result.Failures),
				)
				code := 0
				if result.Failures > 0 {
					code = 2
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}
