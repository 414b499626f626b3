package chat

import (
	"context"
	"time"

	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	throttleKey      = "memberbridge:chat:workspace"
	throttleAttempts = 3
)

// Limiter is satisfied by ratelimit.TokenBucket.
type Limiter interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (ratelimit.Result, error)
}

// Throttle shares one token bucket across every process calling the
// workspace. When the limiter itself fails the call goes through.
type Throttle struct {
	next    Workspace
	limiter Limiter
	rate    float64
	burst   int
	log     *zap.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewThrottle(next Workspace, limiter Limiter, rate float64, burst int, log *zap.Logger, m *metrics.Metrics) *Throttle {
	return &Throttle{
		next:    next,
		limiter: limiter,
		rate:    rate,
		burst:   burst,
		log:     log.Named("chat.throttle"),
		metrics: m,
		sleep:   sleepContext,
	}
}

func (t *Throttle) AddToChannel(ctx context.Context, member Member, channel string) error {
	if err := t.wait(ctx, "add_to_channel"); err != nil {
		return err
	}
	return t.next.AddToChannel(ctx, member, channel)
}

func (t *Throttle) RemoveFromChannel(ctx context.Context, member Member, channel string) error {
	if err := t.wait(ctx, "remove_from_channel"); err != nil {
		return err
	}
	return t.next.RemoveFromChannel(ctx, member, channel)
}

func (t *Throttle) AddToUserGroup(ctx context.Context, member Member, handle string) error {
	if err := t.wait(ctx, "add_to_usergroup"); err != nil {
		return err
	}
	return t.next.AddToUserGroup(ctx, member, handle)
}

func (t *Throttle) RemoveFromUserGroup(ctx context.Context, member Member, handle string) error {
	if err := t.wait(ctx, "remove_from_usergroup"); err != nil {
		return err
	}
	return t.next.RemoveFromUserGroup(ctx, member, handle)
}

func (t *Throttle) DemoteToPublicOnly(ctx context.Context, member Member) error {
	if err := t.wait(ctx, "demote_public_only"); err != nil {
		return err
	}
	return t.next.DemoteToPublicOnly(ctx, member)
}

func (t *Throttle) PromoteToRegular(ctx context.Context, member Member) error {
	if err := t.wait(ctx, "promote_regular"); err != nil {
		return err
	}
	return t.next.PromoteToRegular(ctx, member)
}

func (t *Throttle) InviteIDCheckOnly(ctx context.Context, member Member) error {
	if err := t.wait(ctx, "invite_id_check_only"); err != nil {
		return err
	}
	return t.next.InviteIDCheckOnly(ctx, member)
}

func (t *Throttle) wait(ctx context.Context, op string) error {
	for attempt := 0; attempt < throttleAttempts; attempt++ {
		res, err := t.limiter.Allow(ctx, throttleKey, t.rate, t.burst)
		if err != nil {
			t.log.Warn("chat throttle unavailable, passing through", zap.String("op", op), zap.Error(err))
			return nil
		}
		if res.Allowed {
			return nil
		}

		t.metrics.RecordChatThrottled(ctx, op)
		if err := t.sleep(ctx, res.RetryAfter); err != nil {
			return err
		}
	}
	return ErrThrottled
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
