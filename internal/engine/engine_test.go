package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/config"
	customerdomain "github.com/denhac/memberbridge/internal/customer/domain"
	customerprojector "github.com/denhac/memberbridge/internal/customer/projector"
	customerrepository "github.com/denhac/memberbridge/internal/customer/repository"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	eventstoredomain "github.com/denhac/memberbridge/internal/eventstore/domain"
	eventstorerepository "github.com/denhac/memberbridge/internal/eventstore/repository"
	eventstoreservice "github.com/denhac/memberbridge/internal/eventstore/service"
	featuredomain "github.com/denhac/memberbridge/internal/feature/domain"
	featureservice "github.com/denhac/memberbridge/internal/feature/service"
	jobsdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/reactor"
	subscriptiondomain "github.com/denhac/memberbridge/internal/subscription/domain"
	subscriptionprojector "github.com/denhac/memberbridge/internal/subscription/projector"
	subscriptionrepository "github.com/denhac/memberbridge/internal/subscription/repository"
	"github.com/denhac/memberbridge/internal/testkit"
	"github.com/denhac/memberbridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type countingQueue struct {
	mu       sync.Mutex
	commands []jobsdomain.Command
}

func (q *countingQueue) Enqueue(_ context.Context, cmd jobsdomain.Command) (jobsdomain.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, cmd)
	return jobsdomain.Handle{}, nil
}

func (q *countingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

type recordingReporter struct {
	mu       sync.Mutex
	failures []eventbus.Failure
}

func (r *recordingReporter) ReportHandlerFailure(_ context.Context, f eventbus.Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

type harness struct {
	db       *gorm.DB
	bus      *eventbus.Bus
	queue    *countingQueue
	reporter *recordingReporter
	clock    *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore lets a test wrap the journal the bus reads from.
func newHarnessWithStore(t *testing.T, wrap func(eventstoredomain.Store) eventstoredomain.Store) *harness {
	t.Helper()
	conn := testkit.OpenDB(t)
	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	q := &countingQueue{}
	rep := &recordingReporter{}

	var store eventstoredomain.Store = eventstoreservice.New(eventstoreservice.Params{
		DB:    conn,
		Log:   log,
		Clock: clk,
		Repo:  eventstorerepository.Provide(),
	})
	if wrap != nil {
		store = wrap(store)
	}

	cfg := config.Config{Replay: config.ReplayConfig{PageSize: 2}}
	bus, err := New(Params{
		Store:  store,
		Log:    log,
		Config: cfg,
		Customers: customerprojector.New(customerprojector.Params{
			DB: conn, Log: log, Repo: customerrepository.Provide(),
		}),
		Subscriptions: subscriptionprojector.New(subscriptionprojector.Params{
			DB: conn, Log: log, Repo: subscriptionrepository.Provide(),
		}),
		Slack: reactor.NewSlack(reactor.Params{
			Log:   log,
			Queue: q,
			Flags: featureservice.NewStatic(map[featuredomain.Flag]bool{}),
		}),
		Reporter: rep,
		Tx:       db.NewTransactor(conn),
	})
	require.NoError(t, err)
	return &harness{db: conn, bus: bus, queue: q, reporter: rep, clock: clk}
}

func (h *harness) append(t *testing.T, payloads ...event.Payload) {
	t.Helper()
	for _, p := range payloads {
		h.clock.Advance(time.Minute)
		_, err := h.bus.Append(context.Background(), p)
		require.NoError(t, err)
	}
}

func (h *harness) customers(t *testing.T) []customerdomain.Customer {
	t.Helper()
	var rows []customerdomain.Customer
	require.NoError(t, h.db.Order("external_id").Find(&rows).Error)
	return rows
}

func (h *harness) subscriptions(t *testing.T) []subscriptiondomain.Subscription {
	t.Helper()
	var rows []subscriptiondomain.Subscription
	require.NoError(t, h.db.Order("external_id").Find(&rows).Error)
	return rows
}

func customer(id int64, email string) event.CustomerData {
	return event.CustomerData{ID: id, Email: email, Username: email, FirstName: "F", LastName: "L"}
}

func history() []event.Payload {
	return []event.Payload{
		event.CustomerImported{Customer: customer(1, "a@example.org")},
		event.CustomerCreated{Customer: customer(2, "b@example.org")},
		event.CustomerUpdated{Customer: customer(1, "a2@example.org")},
		event.MembershipActivated{CustomerID: 1},
		event.MembershipActivated{CustomerID: 2},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 10, CustomerID: 1, Status: "active"}},
		event.SubscriptionCreated{Subscription: event.SubscriptionData{ID: 20, CustomerID: 2, Status: "pending"}},
		event.SubscriptionUpdated{Subscription: event.SubscriptionData{ID: 20, CustomerID: 2, Status: "need-id-check"}},
		event.CustomerBecameBoardMember{CustomerID: 1},
		event.MembershipDeactivated{CustomerID: 2},
	}
}

func TestReplayReproducesLiveState(t *testing.T) {
	h := newHarness(t)
	h.append(t, history()...)

	liveCustomers := h.customers(t)
	liveSubscriptions := h.subscriptions(t)
	require.Len(t, liveCustomers, 2)
	require.Len(t, liveSubscriptions, 2)

	result, err := h.bus.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{customerprojector.Name, subscriptionprojector.Name}, result.Projectors)
	assert.Equal(t, len(history()), result.Events)
	assert.EqualValues(t, len(history()), result.LastSeq)
	assert.Zero(t, result.Failures)

	assert.Equal(t, liveCustomers, h.customers(t))
	assert.Equal(t, liveSubscriptions, h.subscriptions(t))
}

func TestReplayNeverRunsReactors(t *testing.T) {
	h := newHarness(t)
	h.append(t, history()...)

	live := h.queue.count()
	require.Positive(t, live)

	_, err := h.bus.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, live, h.queue.count())
}

func TestSubscriptionImportIsIdempotent(t *testing.T) {
	h := newHarness(t)
	imported := event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 10, CustomerID: 1, Status: "active"}}
	h.append(t, event.CustomerImported{Customer: customer(1, "a@example.org")}, imported, imported)

	subs := h.subscriptions(t)
	require.Len(t, subs, 1)
	assert.Equal(t, subscriptiondomain.StatusActive, subs[0].Status)
}

func TestCustomerDeletionCascades(t *testing.T) {
	h := newHarness(t)
	h.append(t,
		event.CustomerImported{Customer: customer(1, "a@example.org")},
		event.CustomerImported{Customer: customer(2, "b@example.org")},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 10, CustomerID: 1, Status: "active"}},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 11, CustomerID: 1, Status: "expired"}},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 20, CustomerID: 2, Status: "active"}},
		event.CustomerDeleted{CustomerID: 1},
	)

	customers := h.customers(t)
	require.Len(t, customers, 1)
	assert.EqualValues(t, 2, customers[0].ExternalID)

	subs := h.subscriptions(t)
	require.Len(t, subs, 1)
	assert.EqualValues(t, 20, subs[0].ExternalID)
}

func TestInconsistencyIsReportedAndIsolated(t *testing.T) {
	h := newHarness(t)
	h.append(t,
		event.MembershipActivated{CustomerID: 99},
		event.CustomerImported{Customer: customer(1, "a@example.org")},
	)

	require.Len(t, h.reporter.failures, 1)
	assert.True(t, h.reporter.failures[0].Inconsistent())
	assert.Equal(t, customerprojector.Name, h.reporter.failures[0].Handler)
	// The reactor still saw the event.
	assert.Equal(t, 1, h.queue.count())
	assert.Len(t, h.customers(t), 1)
}

func TestReplaySubsetLeavesOtherProjectorsAlone(t *testing.T) {
	h := newHarness(t)
	h.append(t,
		event.CustomerImported{Customer: customer(1, "a@example.org")},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 10, CustomerID: 1, Status: "active"}},
	)
	require.NoError(t, h.db.Exec("DELETE FROM customers").Error)

	result, err := h.bus.Replay(context.Background(), subscriptionprojector.Name)
	require.NoError(t, err)
	assert.Equal(t, []string{subscriptionprojector.Name}, result.Projectors)
	assert.Empty(t, h.customers(t))
	assert.Len(t, h.subscriptions(t), 1)

	_, err = h.bus.Replay(context.Background(), "nope")
	assert.ErrorIs(t, err, eventbus.ErrUnknownProjector)
}

// cancellingStore cancels the replay context once the first page is read,
// the way a dropped client connection would.
type cancellingStore struct {
	eventstoredomain.Store
	cancel context.CancelFunc
	pages  int
}

func (s *cancellingStore) ReadPage(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	page, err := s.Store.ReadPage(ctx, afterSeq, limit)
	s.pages++
	if s.pages == 1 && s.cancel != nil {
		s.cancel()
	}
	return page, err
}

func TestCancelledReplayKeepsReadModels(t *testing.T) {
	cancelling := &cancellingStore{}
	h := newHarnessWithStore(t, func(inner eventstoredomain.Store) eventstoredomain.Store {
		cancelling.Store = inner
		return cancelling
	})
	h.append(t,
		event.CustomerImported{Customer: customer(1, "a@example.org")},
		event.CustomerImported{Customer: customer(2, "b@example.org")},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 10, CustomerID: 1, Status: "active"}},
		event.SubscriptionImported{Subscription: event.SubscriptionData{ID: 20, CustomerID: 2, Status: "active"}},
	)
	liveCustomers, liveSubs := h.customers(t), h.subscriptions(t)
	require.Len(t, liveCustomers, 2)
	require.Len(t, liveSubs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelling.cancel = cancel

	_, err := h.bus.Replay(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.bus.Replaying())
	assert.Equal(t, liveCustomers, h.customers(t))
	assert.Equal(t, liveSubs, h.subscriptions(t))
	assert.Empty(t, h.reporter.failures)

	// Live dispatch folds into the intact model.
	h.append(t, event.MembershipActivated{CustomerID: 2})
	assert.Empty(t, h.reporter.failures)
	assert.True(t, h.customers(t)[1].IsMember)

	cancelling.cancel = nil
	cancelling.pages = 0
	result, err := h.bus.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Events)
	assert.Zero(t, result.Failures)
	assert.True(t, h.customers(t)[1].IsMember)
	assert.Len(t, h.subscriptions(t), 2)
}
