// Package chat is the boundary to the member chat workspace. Calls are
// idempotent: adding someone already present or removing someone absent
// succeeds.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
)

const (
	// ChannelBoard is the private board channel.
	ChannelBoard = "board"
	// UserGroupBoard is the @theboard user group handle.
	UserGroupBoard = "theboard"
)

// Member identifies the workspace account of a customer.
type Member struct {
	CustomerID int64
	Email      string
	Username   string
}

type Workspace interface {
	AddToChannel(ctx context.Context, member Member, channel string) error
	RemoveFromChannel(ctx context.Context, member Member, channel string) error
	AddToUserGroup(ctx context.Context, member Member, handle string) error
	RemoveFromUserGroup(ctx context.Context, member Member, handle string) error
	// DemoteToPublicOnly restricts the account to public channels.
	DemoteToPublicOnly(ctx context.Context, member Member) error
	PromoteToRegular(ctx context.Context, member Member) error
	// InviteIDCheckOnly invites the member as a single-channel guest until
	// their identity is checked in person.
	InviteIDCheckOnly(ctx context.Context, member Member) error
}

var (
	ErrMemberNotFound = errors.New("chat_member_not_found")
	ErrThrottled      = errors.New("chat_throttled")
)

// NormalizeHandle turns a display name such as "The Board" into a user
// group handle.
func NormalizeHandle(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "")
}
