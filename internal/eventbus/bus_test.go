package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/denhac/memberbridge/internal/event"
	eventstoredomain "github.com/denhac/memberbridge/internal/eventstore/domain"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type memStore struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (s *memStore) Append(_ context.Context, payload event.Payload) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return event.Event{}, s.err
	}
	evt := event.Event{
		Seq:       uint64(len(s.events) + 1),
		Type:      payload.EventType(),
		Payload:   payload,
		Timestamp: time.Date(2024, 1, 1, 0, 0, len(s.events), 0, time.UTC),
	}
	s.events = append(s.events, evt)
	return evt, nil
}

func (s *memStore) ReadAll(ctx context.Context) ([]event.Event, error) {
	return s.ReadSince(ctx, 0)
}

func (s *memStore) ReadSince(ctx context.Context, afterSeq uint64) ([]event.Event, error) {
	return s.ReadPage(ctx, afterSeq, len(s.events)+1)
}

func (s *memStore) ReadPage(_ context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Event
	for _, evt := range s.events {
		if evt.Seq > afterSeq && len(out) < limit {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (s *memStore) LastSeq(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.events)), nil
}

var _ eventstoredomain.Store = (*memStore)(nil)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type stubHandler struct {
	name   string
	rec    *recorder
	table  HandlerTable
	resets int
}

func newStub(name string, rec *recorder, fn HandlerFunc, types ...event.Type) *stubHandler {
	h := &stubHandler{name: name, rec: rec, table: HandlerTable{}}
	for _, t := range types {
		h.table[t] = func(ctx context.Context, evt event.Event) error {
			rec.add(name)
			if fn != nil {
				return fn(ctx, evt)
			}
			return nil
		}
	}
	return h
}

func (h *stubHandler) Name() string              { return h.name }
func (h *stubHandler) Handles(t event.Type) bool { return h.table.Handles(t) }

func (h *stubHandler) Apply(ctx context.Context, evt event.Event) error {
	return h.table.Dispatch(ctx, evt)
}

func (h *stubHandler) Reset(context.Context) error {
	h.resets++
	h.rec.add(h.name + ".reset")
	return nil
}

type captureReporter struct {
	mu       sync.Mutex
	failures []Failure
}

func (c *captureReporter) ReportHandlerFailure(_ context.Context, f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
}

type fakeLocker struct {
	held     bool
	released bool
}

func (l *fakeLocker) TryLock(context.Context, string, time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *fakeLocker) Release(context.Context, string, string) error {
	l.released = true
	return nil
}

func newTestBus(t *testing.T, store *memStore, opts Options) *Bus {
	t.Helper()
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSyncMetricsForTest(prometheus.NewRegistry())
	}
	return New(store, zaptest.NewLogger(t), opts)
}

var boardAdded = event.CustomerBecameBoardMember{CustomerID: 1}

func TestAppendDispatchesProjectorsThenReactorsInOrder(t *testing.T) {
	rec := &recorder{}
	bus := newTestBus(t, &memStore{}, Options{})

	require.NoError(t, bus.RegisterReactor(newStub("reactor-a", rec, nil, event.TypeBoardMemberAdded)))
	require.NoError(t, bus.RegisterProjector(newStub("projector-a", rec, nil, event.TypeBoardMemberAdded)))
	require.NoError(t, bus.RegisterProjector(newStub("projector-b", rec, nil, event.TypeBoardMemberAdded)))
	require.NoError(t, bus.RegisterReactor(newStub("reactor-b", rec, nil, event.TypeBoardMemberAdded)))

	evt, err := bus.Append(context.Background(), boardAdded)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), evt.Seq)
	assert.Equal(t, []string{"projector-a", "projector-b", "reactor-a", "reactor-b"}, rec.snapshot())
}

func TestAppendSkipsHandlersWithoutEntry(t *testing.T) {
	rec := &recorder{}
	bus := newTestBus(t, &memStore{}, Options{})
	require.NoError(t, bus.RegisterProjector(newStub("customers", rec, nil, event.TypeCustomerCreated)))

	_, err := bus.Append(context.Background(), boardAdded)
	require.NoError(t, err)
	assert.Empty(t, rec.snapshot())
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	rec := &recorder{}
	reporter := &captureReporter{}
	registry := prometheus.NewRegistry()
	bus := newTestBus(t, &memStore{}, Options{
		Reporter: reporter,
		Metrics:  metrics.NewSyncMetricsForTest(registry),
	})

	failing := newStub("broken", rec, func(context.Context, event.Event) error {
		return ErrProjectionInconsistency
	}, event.TypeBoardMemberAdded)
	panicking := newStub("panics", rec, func(context.Context, event.Event) error {
		panic("boom")
	}, event.TypeBoardMemberAdded)
	require.NoError(t, bus.RegisterProjector(failing))
	require.NoError(t, bus.RegisterProjector(panicking))
	require.NoError(t, bus.RegisterProjector(newStub("healthy", rec, nil, event.TypeBoardMemberAdded)))
	require.NoError(t, bus.RegisterReactor(newStub("reactor", rec, nil, event.TypeBoardMemberAdded)))

	_, err := bus.Append(context.Background(), boardAdded)
	require.NoError(t, err)

	assert.Equal(t, []string{"broken", "panics", "healthy", "reactor"}, rec.snapshot())
	require.Len(t, reporter.failures, 2)
	assert.Equal(t, "broken", reporter.failures[0].Handler)
	assert.True(t, reporter.failures[0].Inconsistent())
	assert.Equal(t, "panics", reporter.failures[1].Handler)
	assert.False(t, reporter.failures[1].Inconsistent())
	assert.ErrorIs(t, reporter.failures[1].Err, errHandlerPanic)

	count, err := testutil.GatherAndCount(registry, "memberbridge_handler_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = bus.Append(context.Background(), boardAdded)
	require.NoError(t, err)
	assert.Len(t, rec.snapshot(), 8)
}

func TestAppendStoreFailureSkipsHandlers(t *testing.T) {
	rec := &recorder{}
	store := &memStore{err: eventstoredomain.ErrStoreUnavailable}
	bus := newTestBus(t, store, Options{})
	require.NoError(t, bus.RegisterProjector(newStub("p", rec, nil, event.TypeBoardMemberAdded)))

	_, err := bus.Append(context.Background(), boardAdded)
	assert.ErrorIs(t, err, eventstoredomain.ErrStoreUnavailable)
	assert.Empty(t, rec.snapshot())
}

func TestReplayAppliesProjectorsOnlyInPages(t *testing.T) {
	rec := &recorder{}
	store := &memStore{}
	bus := newTestBus(t, store, Options{ReplayPageSize: 2})

	projector := newStub("p", rec, nil, event.TypeBoardMemberAdded)
	reactor := newStub("r", rec, nil, event.TypeBoardMemberAdded)
	require.NoError(t, bus.RegisterProjector(projector))
	require.NoError(t, bus.RegisterReactor(reactor))

	for i := 0; i < 5; i++ {
		_, err := bus.Append(context.Background(), event.CustomerBecameBoardMember{CustomerID: int64(i + 1)})
		require.NoError(t, err)
	}
	rec.calls = nil

	result, err := bus.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Events)
	assert.Equal(t, uint64(5), result.LastSeq)
	assert.Equal(t, []string{"p"}, result.Projectors)
	assert.Equal(t, []string{"p.reset", "p", "p", "p", "p", "p"}, rec.snapshot())
	assert.False(t, bus.Replaying())
}

func TestReplaySubsetAndUnknownProjector(t *testing.T) {
	rec := &recorder{}
	bus := newTestBus(t, &memStore{}, Options{})
	a := newStub("a", rec, nil, event.TypeBoardMemberAdded)
	b := newStub("b", rec, nil, event.TypeBoardMemberAdded)
	require.NoError(t, bus.RegisterProjector(a))
	require.NoError(t, bus.RegisterProjector(b))

	_, err := bus.Replay(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 0, a.resets)
	assert.Equal(t, 1, b.resets)

	_, err = bus.Replay(context.Background(), "b", "nope")
	assert.ErrorIs(t, err, ErrUnknownProjector)
}

func TestReplayHonoursDistributedLock(t *testing.T) {
	locker := &fakeLocker{held: true}
	bus := newTestBus(t, &memStore{}, Options{Locker: locker})

	_, err := bus.Replay(context.Background())
	assert.ErrorIs(t, err, ErrReplayLocked)

	locker.held = false
	_, err = bus.Replay(context.Background())
	require.NoError(t, err)
	assert.True(t, locker.released)
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	rec := &recorder{}
	bus := newTestBus(t, &memStore{}, Options{})
	require.NoError(t, bus.RegisterProjector(newStub("x", rec, nil)))
	assert.ErrorIs(t, bus.RegisterReactor(newStub("x", rec, nil)), ErrDuplicateHandler)
}

func TestHandlerTableDispatch(t *testing.T) {
	called := false
	table := HandlerTable{
		event.TypeCustomerCreated: func(context.Context, event.Event) error {
			called = true
			return errors.New("x")
		},
	}
	assert.NoError(t, table.Dispatch(context.Background(), event.Event{Type: event.TypeCustomerDeleted}))
	assert.False(t, called)
	assert.Error(t, table.Dispatch(context.Background(), event.Event{Type: event.TypeCustomerCreated}))
	assert.True(t, called)
}

type blockingProjector struct {
	*stubHandler
	resetting chan struct{}
	release   chan struct{}
}

func (p *blockingProjector) Reset(ctx context.Context) error {
	close(p.resetting)
	<-p.release
	return p.stubHandler.Reset(ctx)
}

func TestAppendWaitsForReplay(t *testing.T) {
	rec := &recorder{}
	bus := newTestBus(t, &memStore{}, Options{})
	projector := &blockingProjector{
		stubHandler: newStub("p", rec, nil, event.TypeBoardMemberAdded),
		resetting:   make(chan struct{}),
		release:     make(chan struct{}),
	}
	require.NoError(t, bus.RegisterProjector(projector))
	require.NoError(t, bus.RegisterReactor(newStub("r", rec, nil, event.TypeBoardMemberAdded)))

	// History written before the reactor could see it.
	_, err := bus.store.Append(context.Background(), boardAdded)
	require.NoError(t, err)

	replayDone := make(chan error, 1)
	go func() {
		_, err := bus.Replay(context.Background())
		replayDone <- err
	}()
	<-projector.resetting
	assert.True(t, bus.Replaying())

	appendDone := make(chan event.Event, 1)
	go func() {
		evt, err := bus.Append(context.Background(), event.CustomerBecameBoardMember{CustomerID: 2})
		assert.NoError(t, err)
		appendDone <- evt
	}()

	select {
	case <-appendDone:
		t.Fatal("append finished while replay was running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, rec.snapshot())

	close(projector.release)
	require.NoError(t, <-replayDone)
	evt := <-appendDone
	assert.Equal(t, uint64(2), evt.Seq)

	assert.Equal(t, []string{"p.reset", "p", "p", "r"}, rec.snapshot())
}

type pagedFailStore struct {
	*memStore
	failAfter uint64
}

func (s *pagedFailStore) ReadPage(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if afterSeq >= s.failAfter {
		return nil, eventstoredomain.ErrStoreUnavailable
	}
	return s.memStore.ReadPage(ctx, afterSeq, limit)
}

type recordingTx struct {
	depth     int
	outcomes  []string
	savepoint int
}

func (tx *recordingTx) InTx(ctx context.Context, fn func(context.Context) error) error {
	tx.depth++
	defer func() { tx.depth-- }()
	if tx.depth > 1 {
		tx.savepoint++
		return fn(ctx)
	}
	err := fn(ctx)
	if err != nil {
		tx.outcomes = append(tx.outcomes, "rollback")
	} else {
		tx.outcomes = append(tx.outcomes, "commit")
	}
	return err
}

func TestFailedReplayRollsBackAndDropsFailures(t *testing.T) {
	rec := &recorder{}
	reporter := &captureReporter{}
	tx := &recordingTx{}
	store := &pagedFailStore{memStore: &memStore{}, failAfter: 2}
	bus := New(store, zaptest.NewLogger(t), Options{
		ReplayPageSize: 2,
		Reporter:       reporter,
		Transactor:     tx,
		Metrics:        metrics.NewSyncMetricsForTest(prometheus.NewRegistry()),
	})
	require.NoError(t, bus.RegisterProjector(newStub("p", rec, func(context.Context, event.Event) error {
		return ErrProjectionInconsistency
	}, event.TypeBoardMemberAdded)))

	for i := 0; i < 3; i++ {
		_, err := store.memStore.Append(context.Background(), boardAdded)
		require.NoError(t, err)
	}

	_, err := bus.Replay(context.Background())
	assert.ErrorIs(t, err, eventstoredomain.ErrStoreUnavailable)
	assert.Equal(t, []string{"rollback"}, tx.outcomes)
	assert.Equal(t, 2, tx.savepoint)
	assert.Empty(t, reporter.failures)

	store.failAfter = 100
	result, err := bus.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"rollback", "commit"}, tx.outcomes)
	assert.Equal(t, 3, result.Failures)
	assert.Len(t, reporter.failures, 3)
	assert.True(t, reporter.failures[0].Replay)
}

func TestHandlerFailureIsLoggedOnlyByReporter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	reporter := &captureReporter{}
	bus := New(&memStore{}, zap.New(core), Options{
		Reporter: reporter,
		Metrics:  metrics.NewSyncMetricsForTest(prometheus.NewRegistry()),
	})
	require.NoError(t, bus.RegisterProjector(newStub("broken", &recorder{}, func(context.Context, event.Event) error {
		return errors.New("boom")
	}, event.TypeBoardMemberAdded)))

	_, err := bus.Append(context.Background(), boardAdded)
	require.NoError(t, err)
	assert.Len(t, reporter.failures, 1)
	assert.Zero(t, logs.Len())

	core, logs = observer.New(zap.WarnLevel)
	defaulted := New(&memStore{}, zap.New(core), Options{
		Metrics: metrics.NewSyncMetricsForTest(prometheus.NewRegistry()),
	})
	require.NoError(t, defaulted.RegisterProjector(newStub("broken", &recorder{}, func(context.Context, event.Event) error {
		return errors.New("boom")
	}, event.TypeBoardMemberAdded)))
	_, err = defaulted.Append(context.Background(), boardAdded)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "handler failure", logs.All()[0].Message)
}
