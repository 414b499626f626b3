// Package executor performs queued commands against the chat workspace.
package executor

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/denhac/memberbridge/internal/chat"
	customerdomain "github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/internal/jobs/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Customers customerdomain.Repository
	Workspace chat.Workspace
}

type executors struct {
	db        *gorm.DB
	log       *zap.Logger
	customers customerdomain.Repository
	workspace chat.Workspace
}

// New returns an executor for every command name.
func New(p Params) domain.Executors {
	e := &executors{
		db:        p.DB,
		log:       p.Log.Named("jobs.executor"),
		customers: p.Customers,
		workspace: p.Workspace,
	}

	return domain.Executors{
		domain.CommandAddToChannel: e.withMember(func(ctx context.Context, m chat.Member, cmd domain.Command) error {
			return e.workspace.AddToChannel(ctx, m, cmd.Channel)
		}),
		domain.CommandRemoveFromChannel: e.withMember(func(ctx context.Context, m chat.Member, cmd domain.Command) error {
			return e.workspace.RemoveFromChannel(ctx, m, cmd.Channel)
		}),
		// Groups may be named by display name ("The Board"); the workspace
		// only knows handles.
		domain.CommandAddToUserGroup: e.withMember(func(ctx context.Context, m chat.Member, cmd domain.Command) error {
			return e.workspace.AddToUserGroup(ctx, m, chat.NormalizeHandle(cmd.UserGroup))
		}),
		domain.CommandRemoveFromUserGroup: e.withMember(func(ctx context.Context, m chat.Member, cmd domain.Command) error {
			return e.workspace.RemoveFromUserGroup(ctx, m, chat.NormalizeHandle(cmd.UserGroup))
		}),
		domain.CommandDemoteToPublicOnly: e.withMember(func(ctx context.Context, m chat.Member, _ domain.Command) error {
			return e.workspace.DemoteToPublicOnly(ctx, m)
		}),
		domain.CommandPromoteToRegular: e.withMember(func(ctx context.Context, m chat.Member, _ domain.Command) error {
			return e.workspace.PromoteToRegular(ctx, m)
		}),
		domain.CommandInviteIDCheckOnly: e.withMember(func(ctx context.Context, m chat.Member, _ domain.Command) error {
			return e.workspace.InviteIDCheckOnly(ctx, m)
		}),
	}
}

type memberAction func(ctx context.Context, member chat.Member, cmd domain.Command) error

// withMember resolves the customer's workspace identity from the read model
// before running fn. A customer that is not in the read model fails the job
// without retries.
func (e *executors) withMember(fn memberAction) domain.Executor {
	return domain.ExecutorFunc(func(ctx context.Context, _ domain.Job, cmd domain.Command) error {
		customer, err := e.customers.FindByExternalID(ctx, e.db, cmd.CustomerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return backoff.Permanent(fmt.Errorf("%w: customer %d", chat.ErrMemberNotFound, cmd.CustomerID))
		}

		return fn(ctx, chat.Member{
			CustomerID: customer.ExternalID,
			Email:      customer.Email,
			Username:   customer.Username,
		}, cmd)
	})
}
