// Package event defines the closed set of domain events recorded in the
// membership journal and the codec used to persist them.
package event

import (
	"strings"
	"time"
)

// Type identifies the type of a journal event.
type Type string

// Customer events.
const (
	// TypeCustomerImported records a customer pulled in by a bulk import.
	TypeCustomerImported Type = "customer.imported"
	// TypeCustomerCreated records a customer created on the store.
	TypeCustomerCreated Type = "customer.created"
	// TypeCustomerUpdated records changes to a customer's profile fields.
	TypeCustomerUpdated Type = "customer.updated"
	// TypeCustomerDeleted records a customer removed from the store.
	TypeCustomerDeleted Type = "customer.deleted"
)

// Membership and board events.
const (
	TypeMembershipActivated   Type = "membership.activated"
	TypeMembershipDeactivated Type = "membership.deactivated"
	TypeBoardMemberAdded      Type = "board.member_added"
	TypeBoardMemberRemoved    Type = "board.member_removed"
)

// Subscription events.
const (
	TypeSubscriptionImported Type = "subscription.imported"
	TypeSubscriptionCreated  Type = "subscription.created"
	TypeSubscriptionUpdated  Type = "subscription.updated"
	TypeSubscriptionDeleted  Type = "subscription.deleted"
)

// Event represents an immutable entry in the journal.
type Event struct {
	// Seq is the journal position (starts at 1, no gaps). Assigned by storage on append.
	Seq uint64
	// Type identifies the kind of event.
	Type Type
	// Payload holds the decoded event variant.
	Payload Payload
	// Timestamp is when the event was appended.
	Timestamp time.Time
	// CorrelationID ties the event to the request and jobs it produced.
	CorrelationID string
	// Hash is the content hash of type and payload. Assigned by storage on append.
	Hash string
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "customer", "board").
func (t Type) Domain() string {
	if i := strings.IndexByte(string(t), '.'); i >= 0 {
		return string(t[:i])
	}
	return string(t)
}

// Types lists every known event type in declaration order.
func Types() []Type {
	return []Type{
		TypeCustomerImported,
		TypeCustomerCreated,
		TypeCustomerUpdated,
		TypeCustomerDeleted,
		TypeMembershipActivated,
		TypeMembershipDeactivated,
		TypeBoardMemberAdded,
		TypeBoardMemberRemoved,
		TypeSubscriptionImported,
		TypeSubscriptionCreated,
		TypeSubscriptionUpdated,
		TypeSubscriptionDeleted,
	}
}
