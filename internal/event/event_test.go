package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeKnownTypes(t *testing.T) {
	payload, err := Decode(TypeSubscriptionUpdated, []byte(`{"subscription":{"id":5,"customer_id":42,"status":"need-id-check"}}`))
	require.NoError(t, err)

	updated, ok := payload.(SubscriptionUpdated)
	require.True(t, ok)
	assert.Equal(t, int64(5), updated.Subscription.ID)
	assert.Equal(t, int64(42), updated.Subscription.CustomerID)
	assert.Equal(t, "need-id-check", updated.Subscription.Status)
	assert.Equal(t, TypeSubscriptionUpdated, updated.EventType())
}

func TestDecodeUnknownTypeIsForwardCompatible(t *testing.T) {
	payload, err := Decode(Type("equipment.authorized"), []byte(`{"tool":"laser"}`))
	require.NoError(t, err)

	unknown, ok := payload.(Unknown)
	require.True(t, ok)
	assert.Equal(t, Type("equipment.authorized"), unknown.EventType())
	assert.False(t, Known(unknown.EventType()))

	encoded, err := Encode(unknown)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"laser"}`, string(encoded))
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode(TypeCustomerDeleted, []byte(`{"customer_id":"abc"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Decode(Type(" "), []byte(`{}`))
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestEveryTypeHasDecoder(t *testing.T) {
	for _, typ := range Types() {
		assert.True(t, Known(typ), "missing decoder for %s", typ)
	}
}

func TestCustomerID(t *testing.T) {
	id, ok := CustomerID(CustomerBecameBoardMember{CustomerID: 7})
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = CustomerID(SubscriptionCreated{Subscription: SubscriptionData{ID: 1, CustomerID: 9}})
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	_, ok = CustomerID(Unknown{Type: "x.y"})
	assert.False(t, ok)
}

func TestValidateRequiresPositiveIDs(t *testing.T) {
	assert.NoError(t, Validate(CustomerImported{Customer: CustomerData{ID: 1}}))
	assert.NoError(t, Validate(SubscriptionDeleted{Subscription: SubscriptionData{ID: 3}}))
	assert.NoError(t, Validate(Unknown{Type: "x.y"}))

	for _, p := range []Payload{
		nil,
		CustomerImported{Customer: CustomerData{ID: 0}},
		MembershipActivated{CustomerID: 0},
		CustomerDeleted{CustomerID: -1},
		SubscriptionImported{Subscription: SubscriptionData{ID: 0, CustomerID: 1}},
		SubscriptionUpdated{Subscription: SubscriptionData{ID: 2, CustomerID: 0}},
	} {
		assert.ErrorIs(t, Validate(p), ErrInvalidPayload, "%#v", p)
	}
}

func TestContentHashIsStable(t *testing.T) {
	a := ContentHash(TypeCustomerDeleted, []byte(`{"customer_id":1}`))
	b := ContentHash(TypeCustomerDeleted, []byte(`{"customer_id":1}`))
	c := ContentHash(TypeMembershipActivated, []byte(`{"customer_id":1}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.Equal(t, "customer", TypeCustomerDeleted.Domain())
}
