package projector

import (
	"context"
	"testing"
	"time"

	"github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/internal/customer/repository"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	"github.com/denhac/memberbridge/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	t    *testing.T
	db   *gorm.DB
	repo domain.Repository
	p    *Projector
	seq  uint64
}

func newHarness(t *testing.T) *harness {
	db := testkit.OpenDB(t)
	repo := repository.Provide()
	return &harness{
		t:    t,
		db:   db,
		repo: repo,
		p:    New(Params{DB: db, Log: zaptest.NewLogger(t), Repo: repo}),
	}
}

func (h *harness) apply(payload event.Payload) error {
	h.seq++
	return h.p.Apply(context.Background(), event.Event{
		Seq:       h.seq,
		Type:      payload.EventType(),
		Payload:   payload,
		Timestamp: base.Add(time.Duration(h.seq) * time.Minute),
	})
}

func (h *harness) get(id int64) *domain.Customer {
	c, err := h.repo.FindByExternalID(context.Background(), h.db, id)
	require.NoError(h.t, err)
	return c
}

func alice() event.CustomerData {
	return event.CustomerData{ID: 42, Email: "alice@example.com", Username: "alice", FirstName: "Alice", LastName: "Liddell"}
}

func TestCreateIsFindOrCreate(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.apply(event.CustomerImported{Customer: alice()}))
	changed := alice()
	changed.Email = "other@example.com"
	require.NoError(t, h.apply(event.CustomerCreated{Customer: changed}))

	c := h.get(42)
	require.NotNil(t, c)
	assert.Equal(t, "alice@example.com", c.Email)
	assert.False(t, c.IsMember)
	assert.Equal(t, uint64(1), c.LastEventSeq)
	assert.True(t, c.CreatedAt.Equal(base.Add(time.Minute)))
}

func TestUpdateCopiesPayloadFields(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.apply(event.CustomerCreated{Customer: alice()}))

	updated := alice()
	updated.Email = "alice@new.example.com"
	updated.LastName = "Kingsleigh"
	require.NoError(t, h.apply(event.CustomerUpdated{Customer: updated}))

	c := h.get(42)
	assert.Equal(t, "alice@new.example.com", c.Email)
	assert.Equal(t, "Kingsleigh", c.LastName)
	assert.Equal(t, uint64(2), c.LastEventSeq)
}

func TestMembershipToggles(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.apply(event.CustomerCreated{Customer: alice()}))

	require.NoError(t, h.apply(event.MembershipActivated{CustomerID: 42}))
	assert.True(t, h.get(42).IsMember)

	require.NoError(t, h.apply(event.MembershipDeactivated{CustomerID: 42}))
	assert.False(t, h.get(42).IsMember)
}

func TestUpdatesForMissingCustomerAreInconsistent(t *testing.T) {
	h := newHarness(t)

	for _, payload := range []event.Payload{
		event.CustomerUpdated{Customer: alice()},
		event.MembershipActivated{CustomerID: 42},
		event.MembershipDeactivated{CustomerID: 42},
	} {
		err := h.apply(payload)
		assert.ErrorIs(t, err, eventbus.ErrProjectionInconsistency, string(payload.EventType()))
	}
	assert.Nil(t, h.get(42))
}

func TestDeleteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.apply(event.CustomerCreated{Customer: alice()}))

	require.NoError(t, h.apply(event.CustomerDeleted{CustomerID: 42}))
	assert.Nil(t, h.get(42))
	require.NoError(t, h.apply(event.CustomerDeleted{CustomerID: 42}))
}

func TestResetTruncates(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.apply(event.CustomerCreated{Customer: alice()}))

	require.NoError(t, h.p.Reset(context.Background()))
	assert.Nil(t, h.get(42))
}

func TestIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.p.Handles(event.TypeBoardMemberAdded))
	assert.False(t, h.p.Handles(event.TypeSubscriptionCreated))
	assert.NoError(t, h.apply(event.Unknown{Type: "future.event"}))
}
