package event

import (
	"encoding/json"
	"fmt"
)

// Payload is implemented by every event variant. The set is closed: only
// types in this package satisfy it.
type Payload interface {
	EventType() Type
	sealed()
}

// CustomerData mirrors the store's customer resource.
type CustomerData struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SubscriptionData mirrors the store's subscription resource.
type SubscriptionData struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Status     string `json:"status"`
}

// CustomerImported captures the payload for customer.imported events.
type CustomerImported struct {
	Customer CustomerData `json:"customer"`
}

// CustomerCreated captures the payload for customer.created events.
type CustomerCreated struct {
	Customer CustomerData `json:"customer"`
}

// CustomerUpdated captures the payload for customer.updated events.
type CustomerUpdated struct {
	Customer CustomerData `json:"customer"`
}

// CustomerDeleted captures the payload for customer.deleted events.
type CustomerDeleted struct {
	CustomerID int64 `json:"customer_id"`
}

// MembershipActivated captures the payload for membership.activated events.
type MembershipActivated struct {
	CustomerID int64 `json:"customer_id"`
}

// MembershipDeactivated captures the payload for membership.deactivated events.
type MembershipDeactivated struct {
	CustomerID int64 `json:"customer_id"`
}

// CustomerBecameBoardMember captures the payload for board.member_added events.
type CustomerBecameBoardMember struct {
	CustomerID int64 `json:"customer_id"`
}

// CustomerRemovedFromBoard captures the payload for board.member_removed events.
type CustomerRemovedFromBoard struct {
	CustomerID int64 `json:"customer_id"`
}

// SubscriptionImported captures the payload for subscription.imported events.
type SubscriptionImported struct {
	Subscription SubscriptionData `json:"subscription"`
}

// SubscriptionCreated captures the payload for subscription.created events.
type SubscriptionCreated struct {
	Subscription SubscriptionData `json:"subscription"`
}

// SubscriptionUpdated captures the payload for subscription.updated events.
type SubscriptionUpdated struct {
	Subscription SubscriptionData `json:"subscription"`
}

// SubscriptionDeleted captures the payload for subscription.deleted events.
type SubscriptionDeleted struct {
	Subscription SubscriptionData `json:"subscription"`
}

// Unknown holds an event whose type this build does not understand. Every
// handler ignores it.
type Unknown struct {
	Type Type
	Raw  json.RawMessage
}

func (CustomerImported) EventType() Type          { return TypeCustomerImported }
func (CustomerCreated) EventType() Type           { return TypeCustomerCreated }
func (CustomerUpdated) EventType() Type           { return TypeCustomerUpdated }
func (CustomerDeleted) EventType() Type           { return TypeCustomerDeleted }
func (MembershipActivated) EventType() Type       { return TypeMembershipActivated }
func (MembershipDeactivated) EventType() Type     { return TypeMembershipDeactivated }
func (CustomerBecameBoardMember) EventType() Type { return TypeBoardMemberAdded }
func (CustomerRemovedFromBoard) EventType() Type  { return TypeBoardMemberRemoved }
func (SubscriptionImported) EventType() Type      { return TypeSubscriptionImported }
func (SubscriptionCreated) EventType() Type       { return TypeSubscriptionCreated }
func (SubscriptionUpdated) EventType() Type       { return TypeSubscriptionUpdated }
func (SubscriptionDeleted) EventType() Type       { return TypeSubscriptionDeleted }
func (u Unknown) EventType() Type                 { return u.Type }

func (CustomerImported) sealed()          {}
func (CustomerCreated) sealed()           {}
func (CustomerUpdated) sealed()           {}
func (CustomerDeleted) sealed()           {}
func (MembershipActivated) sealed()       {}
func (MembershipDeactivated) sealed()     {}
func (CustomerBecameBoardMember) sealed() {}
func (CustomerRemovedFromBoard) sealed()  {}
func (SubscriptionImported) sealed()      {}
func (SubscriptionCreated) sealed()       {}
func (SubscriptionUpdated) sealed()       {}
func (SubscriptionDeleted) sealed()       {}
func (Unknown) sealed()                   {}

// CustomerID returns the store customer id the payload concerns, if any.
func CustomerID(p Payload) (int64, bool) {
	switch v := p.(type) {
	case CustomerImported:
		return v.Customer.ID, true
	case CustomerCreated:
		return v.Customer.ID, true
	case CustomerUpdated:
		return v.Customer.ID, true
	case CustomerDeleted:
		return v.CustomerID, true
	case MembershipActivated:
		return v.CustomerID, true
	case MembershipDeactivated:
		return v.CustomerID, true
	case CustomerBecameBoardMember:
		return v.CustomerID, true
	case CustomerRemovedFromBoard:
		return v.CustomerID, true
	case SubscriptionImported:
		return v.Subscription.CustomerID, true
	case SubscriptionCreated:
		return v.Subscription.CustomerID, true
	case SubscriptionUpdated:
		return v.Subscription.CustomerID, true
	case SubscriptionDeleted:
		return v.Subscription.CustomerID, true
	default:
		return 0, false
	}
}

// Validate rejects payloads whose store ids cannot identify a read model row.
// Store ids start at 1.
func Validate(p Payload) error {
	switch v := p.(type) {
	case nil:
		return ErrInvalidPayload
	case Unknown:
		return nil
	case SubscriptionImported:
		return v.Subscription.validate(true)
	case SubscriptionCreated:
		return v.Subscription.validate(true)
	case SubscriptionUpdated:
		return v.Subscription.validate(true)
	case SubscriptionDeleted:
		return v.Subscription.validate(false)
	}

	id, ok := CustomerID(p)
	if ok && id <= 0 {
		return fmt.Errorf("%w: customer id must be positive, got %d", ErrInvalidPayload, id)
	}
	return nil
}

func (s SubscriptionData) validate(needCustomer bool) error {
	if s.ID <= 0 {
		return fmt.Errorf("%w: subscription id must be positive, got %d", ErrInvalidPayload, s.ID)
	}
	if needCustomer && s.CustomerID <= 0 {
		return fmt.Errorf("%w: subscription %d has customer id %d", ErrInvalidPayload, s.ID, s.CustomerID)
	}
	return nil
}
