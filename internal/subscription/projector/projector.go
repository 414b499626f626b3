package projector

import (
	"context"
	"fmt"

	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	"github.com/denhac/memberbridge/internal/subscription/domain"
	"github.com/denhac/memberbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Name identifies the subscription projector on the bus.
const Name = "subscriptions"

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

// Projector keeps the subscriptions table in step with subscription events
// and cascades customer deletions.
type Projector struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	table eventbus.HandlerTable
}

func New(p Params) *Projector {
	pr := &Projector{
		db:   p.DB,
		log:  p.Log.Named("subscription.projector"),
		repo: p.Repo,
	}
	pr.table = eventbus.HandlerTable{
		event.TypeSubscriptionImported: pr.onSubscriptionImported,
		event.TypeSubscriptionCreated:  pr.onSubscriptionCreated,
		event.TypeSubscriptionUpdated:  pr.onSubscriptionUpdated,
		event.TypeSubscriptionDeleted:  pr.onSubscriptionDeleted,
		event.TypeCustomerDeleted:      pr.onCustomerDeleted,
	}
	return pr
}

func (p *Projector) Name() string { return Name }

// conn prefers the replay transaction carried by ctx.
func (p *Projector) conn(ctx context.Context) *gorm.DB { return db.Conn(ctx, p.db) }

func (p *Projector) Handles(t event.Type) bool { return p.table.Handles(t) }

func (p *Projector) Apply(ctx context.Context, evt event.Event) error {
	return p.table.Dispatch(ctx, evt)
}

func (p *Projector) Reset(ctx context.Context) error {
	if err := p.repo.Truncate(ctx, p.conn(ctx)); err != nil {
		return err
	}
	p.log.Info("subscriptions truncated for replay")
	return nil
}

func (p *Projector) onSubscriptionImported(ctx context.Context, evt event.Event) error {
	return p.findOrCreate(ctx, evt, evt.Payload.(event.SubscriptionImported).Subscription)
}

func (p *Projector) onSubscriptionCreated(ctx context.Context, evt event.Event) error {
	return p.findOrCreate(ctx, evt, evt.Payload.(event.SubscriptionCreated).Subscription)
}

func (p *Projector) onSubscriptionUpdated(ctx context.Context, evt event.Event) error {
	data := evt.Payload.(event.SubscriptionUpdated).Subscription

	subscription, err := p.repo.FindByExternalID(ctx, p.conn(ctx), data.ID)
	if err != nil {
		return err
	}
	if subscription == nil {
		return fmt.Errorf("%w: subscription %d not found for %s (seq %d)",
			eventbus.ErrProjectionInconsistency, data.ID, evt.Type, evt.Seq)
	}

	subscription.CustomerExternalID = data.CustomerID
	subscription.Status = domain.NormalizeStatus(data.Status)
	subscription.LastEventSeq = evt.Seq
	subscription.UpdatedAt = evt.Timestamp
	return p.repo.Update(ctx, p.conn(ctx), subscription)
}

func (p *Projector) onSubscriptionDeleted(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.SubscriptionDeleted).Subscription.ID
	_, err := p.repo.Delete(ctx, p.conn(ctx), id)
	return err
}

func (p *Projector) onCustomerDeleted(ctx context.Context, evt event.Event) error {
	customerID := evt.Payload.(event.CustomerDeleted).CustomerID
	removed, err := p.repo.DeleteByCustomer(ctx, p.conn(ctx), customerID)
	if err != nil {
		return err
	}
	if removed > 0 {
		p.log.Debug("subscriptions removed with customer",
			zap.Int64("customer_id", customerID),
			zap.Int64("removed", removed),
		)
	}
	return nil
}

func (p *Projector) findOrCreate(ctx context.Context, evt event.Event, data event.SubscriptionData) error {
	existing, err := p.repo.FindByExternalID(ctx, p.conn(ctx), data.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return p.repo.Insert(ctx, p.conn(ctx), &domain.Subscription{
		ExternalID:         data.ID,
		CustomerExternalID: data.CustomerID,
		Status:             domain.NormalizeStatus(data.Status),
		LastEventSeq:       evt.Seq,
		CreatedAt:          evt.Timestamp,
		UpdatedAt:          evt.Timestamp,
	})
}
