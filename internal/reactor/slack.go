// Package reactor turns live journal events into chat workspace commands.
package reactor

import (
	"context"
	"fmt"

	"github.com/denhac/memberbridge/internal/chat"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	featuredomain "github.com/denhac/memberbridge/internal/feature/domain"
	jobsdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	subscriptiondomain "github.com/denhac/memberbridge/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SlackName identifies the Slack reactor on the bus.
const SlackName = "slack"

type Params struct {
	fx.In

	Log   *zap.Logger
	Queue jobsdomain.Queue
	Flags featuredomain.Provider
}

// Slack keeps workspace access in line with membership and board status.
type Slack struct {
	log   *zap.Logger
	queue jobsdomain.Queue
	flags featuredomain.Provider
	table eventbus.HandlerTable
}

func NewSlack(p Params) *Slack {
	r := &Slack{
		log:   p.Log.Named("reactor.slack"),
		queue: p.Queue,
		flags: p.Flags,
	}
	r.table = eventbus.HandlerTable{
		event.TypeBoardMemberAdded:      r.onBecameBoardMember,
		event.TypeBoardMemberRemoved:    r.onRemovedFromBoard,
		event.TypeMembershipActivated:   r.onMembershipActivated,
		event.TypeMembershipDeactivated: r.onMembershipDeactivated,
		event.TypeSubscriptionUpdated:   r.onSubscriptionUpdated,
	}
	return r
}

func (r *Slack) Name() string { return SlackName }

func (r *Slack) Handles(t event.Type) bool { return r.table.Handles(t) }

func (r *Slack) Apply(ctx context.Context, evt event.Event) error {
	return r.table.Dispatch(ctx, evt)
}

func (r *Slack) onBecameBoardMember(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.CustomerBecameBoardMember).CustomerID
	return r.enqueue(ctx, evt,
		jobsdomain.AddToChannel(id, chat.ChannelBoard),
		jobsdomain.AddToUserGroup(id, chat.UserGroupBoard),
	)
}

func (r *Slack) onRemovedFromBoard(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.CustomerRemovedFromBoard).CustomerID
	return r.enqueue(ctx, evt,
		jobsdomain.RemoveFromChannel(id, chat.ChannelBoard),
		jobsdomain.RemoveFromUserGroup(id, chat.UserGroupBoard),
	)
}

func (r *Slack) onMembershipActivated(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.MembershipActivated).CustomerID
	return r.enqueue(ctx, evt, jobsdomain.PromoteToRegularMember(id))
}

func (r *Slack) onMembershipDeactivated(ctx context.Context, evt event.Event) error {
	if r.flags.IsEnabled(featuredomain.KeepMembersInSlackAndEmail) {
		return nil
	}
	id := evt.Payload.(event.MembershipDeactivated).CustomerID
	return r.enqueue(ctx, evt, jobsdomain.DemoteToPublicOnlyMember(id))
}

func (r *Slack) onSubscriptionUpdated(ctx context.Context, evt event.Event) error {
	sub := evt.Payload.(event.SubscriptionUpdated).Subscription
	if subscriptiondomain.NormalizeStatus(sub.Status) != subscriptiondomain.StatusNeedIDCheck {
		return nil
	}

	if r.flags.IsEnabled(featuredomain.NeedIDCheckGetsAddedToSlackAndEmail) {
		return r.enqueue(ctx, evt, jobsdomain.PromoteToRegularMember(sub.CustomerID))
	}
	return r.enqueue(ctx, evt, jobsdomain.InviteAsIDCheckOnlyMember(sub.CustomerID))
}

// enqueue stops at the first failure. Commands already queued stay queued;
// their dedupe keys make a retry of the same event safe.
func (r *Slack) enqueue(ctx context.Context, evt event.Event, cmds ...jobsdomain.Command) error {
	for _, cmd := range cmds {
		cmd = cmd.WithEvent(evt.Seq, evt.CorrelationID)
		handle, err := r.queue.Enqueue(ctx, cmd)
		if err != nil {
			return fmt.Errorf("enqueue %s for customer %d: %w", cmd.Name, cmd.CustomerID, err)
		}
		if handle.Duplicate {
			r.log.Debug("command already queued",
				zap.String("command", string(cmd.Name)),
				zap.String("dedupe_key", cmd.DedupeKey),
			)
		}
	}
	return nil
}
