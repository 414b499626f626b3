package projector

import (
	"context"
	"fmt"

	"github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	"github.com/denhac/memberbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Name identifies the customer projector on the bus.
const Name = "customers"

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

// Projector folds customer and membership events into the customers table.
type Projector struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	table eventbus.HandlerTable
}

func New(p Params) *Projector {
	pr := &Projector{
		db:   p.DB,
		log:  p.Log.Named("customer.projector"),
		repo: p.Repo,
	}
	pr.table = eventbus.HandlerTable{
		event.TypeCustomerImported:      pr.onCustomerImported,
		event.TypeCustomerCreated:       pr.onCustomerCreated,
		event.TypeCustomerUpdated:       pr.onCustomerUpdated,
		event.TypeCustomerDeleted:       pr.onCustomerDeleted,
		event.TypeMembershipActivated:   pr.onMembershipActivated,
		event.TypeMembershipDeactivated: pr.onMembershipDeactivated,
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

// Reset empties the customers table ahead of a replay.
func (p *Projector) Reset(ctx context.Context) error {
	if err := p.repo.Truncate(ctx, p.conn(ctx)); err != nil {
		return err
	}
	p.log.Info("customers truncated for replay")
	return nil
}

func (p *Projector) onCustomerImported(ctx context.Context, evt event.Event) error {
	payload := evt.Payload.(event.CustomerImported)
	return p.findOrCreate(ctx, evt, payload.Customer)
}

func (p *Projector) onCustomerCreated(ctx context.Context, evt event.Event) error {
	payload := evt.Payload.(event.CustomerCreated)
	return p.findOrCreate(ctx, evt, payload.Customer)
}

func (p *Projector) onCustomerUpdated(ctx context.Context, evt event.Event) error {
	data := evt.Payload.(event.CustomerUpdated).Customer
	return p.mutate(ctx, evt, data.ID, func(c *domain.Customer) {
		c.Email = data.Email
		c.Username = data.Username
		c.FirstName = data.FirstName
		c.LastName = data.LastName
	})
}

func (p *Projector) onCustomerDeleted(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.CustomerDeleted).CustomerID
	_, err := p.repo.Delete(ctx, p.conn(ctx), id)
	return err
}

func (p *Projector) onMembershipActivated(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.MembershipActivated).CustomerID
	return p.mutate(ctx, evt, id, func(c *domain.Customer) { c.IsMember = true })
}

func (p *Projector) onMembershipDeactivated(ctx context.Context, evt event.Event) error {
	id := evt.Payload.(event.MembershipDeactivated).CustomerID
	return p.mutate(ctx, evt, id, func(c *domain.Customer) { c.IsMember = false })
}

func (p *Projector) findOrCreate(ctx context.Context, evt event.Event, data event.CustomerData) error {
	existing, err := p.repo.FindByExternalID(ctx, p.conn(ctx), data.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return p.repo.Insert(ctx, p.conn(ctx), &domain.Customer{
		ExternalID:   data.ID,
		Email:        data.Email,
		Username:     data.Username,
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		IsMember:     false,
		LastEventSeq: evt.Seq,
		CreatedAt:    evt.Timestamp,
		UpdatedAt:    evt.Timestamp,
	})
}

func (p *Projector) mutate(ctx context.Context, evt event.Event, id int64, change func(*domain.Customer)) error {
	customer, err := p.repo.FindByExternalID(ctx, p.conn(ctx), id)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("%w: customer %d not found for %s (seq %d)",
			eventbus.ErrProjectionInconsistency, id, evt.Type, evt.Seq)
	}

	change(customer)
	customer.LastEventSeq = evt.Seq
	customer.UpdatedAt = evt.Timestamp
	return p.repo.Update(ctx, p.conn(ctx), customer)
}
