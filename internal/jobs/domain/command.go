package domain

import (
	"fmt"
	"strconv"
)

// CommandName identifies an action against the chat workspace.
type CommandName string

const (
	CommandAddToChannel        CommandName = "slack.add_to_channel"
	CommandRemoveFromChannel   CommandName = "slack.remove_from_channel"
	CommandAddToUserGroup      CommandName = "slack.add_to_usergroup"
	CommandRemoveFromUserGroup CommandName = "slack.remove_from_usergroup"
	CommandDemoteToPublicOnly  CommandName = "slack.demote_public_only"
	CommandPromoteToRegular    CommandName = "slack.promote_regular"
	CommandInviteIDCheckOnly   CommandName = "slack.invite_id_check_only"
)

// CommandNames lists every command an executor must exist for.
func CommandNames() []CommandName {
	return []CommandName{
		CommandAddToChannel,
		CommandRemoveFromChannel,
		CommandAddToUserGroup,
		CommandRemoveFromUserGroup,
		CommandDemoteToPublicOnly,
		CommandPromoteToRegular,
		CommandInviteIDCheckOnly,
	}
}

// Command is a request for one idempotent external action.
type Command struct {
	Name       CommandName `json:"-"`
	CustomerID int64       `json:"customer_id"`
	Channel    string      `json:"channel,omitempty"`
	UserGroup  string      `json:"usergroup,omitempty"`

	// DedupeKey makes enqueueing idempotent; a second command with the same
	// key is reported as a duplicate and not stored.
	DedupeKey     string `json:"-"`
	EventSeq      uint64 `json:"-"`
	CorrelationID string `json:"-"`
}

func AddToChannel(customerID int64, channel string) Command {
	return Command{Name: CommandAddToChannel, CustomerID: customerID, Channel: channel}
}

func RemoveFromChannel(customerID int64, channel string) Command {
	return Command{Name: CommandRemoveFromChannel, CustomerID: customerID, Channel: channel}
}

func AddToUserGroup(customerID int64, handle string) Command {
	return Command{Name: CommandAddToUserGroup, CustomerID: customerID, UserGroup: handle}
}

func RemoveFromUserGroup(customerID int64, handle string) Command {
	return Command{Name: CommandRemoveFromUserGroup, CustomerID: customerID, UserGroup: handle}
}

func DemoteToPublicOnlyMember(customerID int64) Command {
	return Command{Name: CommandDemoteToPublicOnly, CustomerID: customerID}
}

func PromoteToRegularMember(customerID int64) Command {
	return Command{Name: CommandPromoteToRegular, CustomerID: customerID}
}

func InviteAsIDCheckOnlyMember(customerID int64) Command {
	return Command{Name: CommandInviteIDCheckOnly, CustomerID: customerID}
}

// Target names what the command acts on besides the customer.
func (c Command) Target() string {
	switch {
	case c.Channel != "":
		return c.Channel
	case c.UserGroup != "":
		return c.UserGroup
	default:
		return strconv.FormatInt(c.CustomerID, 10)
	}
}

// EntityKey groups commands that must run in enqueue order.
func (c Command) EntityKey() string {
	return CustomerEntityKey(c.CustomerID)
}

func CustomerEntityKey(customerID int64) string {
	return "customer:" + strconv.FormatInt(customerID, 10)
}

// WithEvent stamps the command with the event that caused it and derives
// the dedupe key from it.
func (c Command) WithEvent(seq uint64, correlationID string) Command {
	c.EventSeq = seq
	c.CorrelationID = correlationID
	c.DedupeKey = fmt.Sprintf("%d:%s:%d:%s", seq, c.Name, c.CustomerID, c.Target())
	return c
}

func (c Command) Validate() error {
	if c.Name == "" {
		return ErrInvalidCommand
	}
	if c.CustomerID <= 0 {
		return fmt.Errorf("%w: customer id required", ErrInvalidCommand)
	}
	switch c.Name {
	case CommandAddToChannel, CommandRemoveFromChannel:
		if c.Channel == "" {
			return fmt.Errorf("%w: channel required", ErrInvalidCommand)
		}
	case CommandAddToUserGroup, CommandRemoveFromUserGroup:
		if c.UserGroup == "" {
			return fmt.Errorf("%w: usergroup required", ErrInvalidCommand)
		}
	}
	return nil
}
