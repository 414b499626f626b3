package ratelimit

import (
	"context"
	"strings"

	"github.com/denhac/memberbridge/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// NewClient returns nil when REDIS_ADDR is unset. Callers treat a nil client
// as "single process": no cross-process replay lock and no shared throttle.
func NewClient(p Params) *redis.Client {
	log := p.Log.Named("ratelimit.redis")

	addr := strings.TrimSpace(p.Config.RedisAddr)
	if addr == "" {
		log.Info("redis not configured")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Config.RedisPassword),
		DB:       p.Config.RedisDB,
	})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client
}
