package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidType    = errors.New("invalid_event_type")
	ErrInvalidPayload = errors.New("invalid_event_payload")
)

var decoders = map[Type]func([]byte) (Payload, error){
	TypeCustomerImported:      decodeAs[CustomerImported],
	TypeCustomerCreated:       decodeAs[CustomerCreated],
	TypeCustomerUpdated:       decodeAs[CustomerUpdated],
	TypeCustomerDeleted:       decodeAs[CustomerDeleted],
	TypeMembershipActivated:   decodeAs[MembershipActivated],
	TypeMembershipDeactivated: decodeAs[MembershipDeactivated],
	TypeBoardMemberAdded:      decodeAs[CustomerBecameBoardMember],
	TypeBoardMemberRemoved:    decodeAs[CustomerRemovedFromBoard],
	TypeSubscriptionImported:  decodeAs[SubscriptionImported],
	TypeSubscriptionCreated:   decodeAs[SubscriptionCreated],
	TypeSubscriptionUpdated:   decodeAs[SubscriptionUpdated],
	TypeSubscriptionDeleted:   decodeAs[SubscriptionDeleted],
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

// Known reports whether t is part of the event catalogue.
func Known(t Type) bool {
	_, ok := decoders[t]
	return ok
}

// Encode serializes a payload for storage.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, ErrInvalidPayload
	}
	if u, ok := p.(Unknown); ok {
		if len(u.Raw) == 0 {
			return []byte("{}"), nil
		}
		return u.Raw, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, nil
}

// Decode rebuilds a payload from its stored form. Types outside the catalogue
// decode to Unknown so older binaries can still read newer journals.
func Decode(t Type, data []byte) (Payload, error) {
	if !t.IsValid() {
		return nil, ErrInvalidType
	}
	decode, ok := decoders[t]
	if !ok {
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return Unknown{Type: t, Raw: raw}, nil
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	return decode(data)
}

// ContentHash returns the hex SHA-256 of type and encoded payload.
func ContentHash(t Type, data []byte) string {
	h := sha256.New()
	h.Write([]byte(t))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
