package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/denhac/memberbridge/internal/audit"
	"github.com/denhac/memberbridge/internal/chat"
	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/customer"
	"github.com/denhac/memberbridge/internal/engine"
	"github.com/denhac/memberbridge/internal/eventstore"
	"github.com/denhac/memberbridge/internal/feature"
	"github.com/denhac/memberbridge/internal/jobs"
	"github.com/denhac/memberbridge/internal/migration"
	"github.com/denhac/memberbridge/internal/observability"
	"github.com/denhac/memberbridge/internal/ratelimit"
	"github.com/denhac/memberbridge/internal/reactor"
	"github.com/denhac/memberbridge/internal/server"
	"github.com/denhac/memberbridge/internal/subscription"
	"github.com/denhac/memberbridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Journal and read models
		eventstore.Module,
		customer.Module,
		subscription.Module,
		audit.Module,

		// Reactions
		feature.Module,
		chat.Module,
		jobs.Module,
		jobs.WorkerModule,
		reactor.Module,

		engine.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
