package eventbus

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/denhac/memberbridge/internal/event"
	eventstoredomain "github.com/denhac/memberbridge/internal/eventstore/domain"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultReplayPageSize = 200
	defaultReplayLockTTL  = 30 * time.Minute
	replayLockKey         = "memberbridge:replay"
)

// Locker guards replay across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Transactor runs fn inside one transaction carried by the context it passes
// to fn. A call made with a context that already carries a transaction opens
// a savepoint.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options tune a Bus. Zero values fall back to defaults.
type Options struct {
	ReplayPageSize int
	ReplayLockTTL  time.Duration
	Reporter       Reporter
	Locker         Locker
	// Transactor makes a replay all-or-nothing. Without one a failed replay
	// leaves the selected read models partly rebuilt.
	Transactor  Transactor
	Metrics     *metrics.SyncMetrics
	OtelMetrics *metrics.Metrics
}

type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// ReplayResult summarizes a finished rebuild.
type ReplayResult struct {
	Projectors []string      `json:"projectors"`
	Events     int           `json:"events"`
	LastSeq    uint64        `json:"last_seq"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"duration"`
}

// Bus appends events to the journal and hands them to registered handlers.
// mu serializes appends with replays so no live event reaches a projector
// while it is being rebuilt.
type Bus struct {
	store  eventstoredomain.Store
	log    *zap.Logger
	tracer trace.Tracer
	opts   Options

	mu         sync.Mutex
	replaying  atomic.Bool
	projectors []Projector
	reactors   []Reactor
	names      map[string]struct{}
}

func New(store eventstoredomain.Store, log *zap.Logger, opts Options) *Bus {
	if opts.ReplayPageSize <= 0 {
		opts.ReplayPageSize = defaultReplayPageSize
	}
	if opts.ReplayLockTTL <= 0 {
		opts.ReplayLockTTL = defaultReplayLockTTL
	}
	if opts.Reporter == nil {
		opts.Reporter = NewLogReporter(log)
	}
	if opts.Transactor == nil {
		opts.Transactor = directTx{}
	}
	return &Bus{
		store:  store,
		log:    log.Named("eventbus"),
		tracer: otel.Tracer("memberbridge/eventbus"),
		opts:   opts,
		names:  map[string]struct{}{},
	}
}

// RegisterProjector adds p after previously registered projectors.
func (b *Bus) RegisterProjector(p Projector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.claimName(p.Name()); err != nil {
		return err
	}
	b.projectors = append(b.projectors, p)
	return nil
}

// RegisterReactor adds r after previously registered reactors.
func (b *Bus) RegisterReactor(r Reactor) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.claimName(r.Name()); err != nil {
		return err
	}
	b.reactors = append(b.reactors, r)
	return nil
}

func (b *Bus) claimName(name string) error {
	if _, ok := b.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}
	b.names[name] = struct{}{}
	return nil
}

// Replaying reports whether a rebuild is running.
func (b *Bus) Replaying() bool {
	return b.replaying.Load()
}

// Append stores payload, then applies the stored event to every projector
// and then every reactor in registration order. Only a store failure is
// returned; handler failures are reported and isolated.
func (b *Bus) Append(ctx context.Context, payload event.Payload) (event.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	evt, err := b.store.Append(ctx, payload)
	if err != nil {
		return event.Event{}, err
	}

	b.opts.OtelMetrics.RecordEventAppended(ctx, string(evt.Type))
	for _, p := range b.projectors {
		if failure, ok := b.apply(ctx, p, metrics.HandlerKindProjector, evt, false); !ok {
			b.opts.Reporter.ReportHandlerFailure(ctx, failure)
		}
	}
	for _, r := range b.reactors {
		if failure, ok := b.apply(ctx, r, metrics.HandlerKindReactor, evt, false); !ok {
			b.opts.Reporter.ReportHandlerFailure(ctx, failure)
		}
	}
	return evt, nil
}

// Replay rebuilds the named projectors from the whole journal. With no
// names every projector is rebuilt. Reactors never run.
func (b *Bus) Replay(ctx context.Context, projectorNames ...string) (ReplayResult, error) {
	ctx, span := b.tracer.Start(ctx, "eventbus.replay")
	defer span.End()

	if b.opts.Locker != nil {
		token, ok, err := b.opts.Locker.TryLock(ctx, replayLockKey, b.opts.ReplayLockTTL)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("acquire replay lock: %w", err)
		}
		if !ok {
			return ReplayResult{}, ErrReplayLocked
		}
		defer func() {
			if err := b.opts.Locker.Release(context.WithoutCancel(ctx), replayLockKey, token); err != nil {
				b.log.Warn("release replay lock", zap.Error(err))
			}
		}()
	}

	if !b.replaying.CompareAndSwap(false, true) {
		return ReplayResult{}, ErrReplayInProgress
	}
	defer b.replaying.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()

	selected, err := b.selectProjectors(projectorNames)
	if err != nil {
		return ReplayResult{}, err
	}

	start := time.Now()
	result := ReplayResult{Projectors: make([]string, 0, len(selected))}
	for _, p := range selected {
		result.Projectors = append(result.Projectors, p.Name())
	}
	span.SetAttributes(attribute.StringSlice("replay.projectors", result.Projectors))

	var failures []Failure
	err = b.opts.Transactor.InTx(ctx, func(ctx context.Context) error {
		return b.replay(ctx, selected, &result, &failures)
	})
	result.Duration = time.Since(start)
	b.opts.Metrics.ObserveReplay(result.Events, result.Duration, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "replay failed")
		b.log.Error("replay rolled back",
			zap.Strings("projectors", result.Projectors),
			zap.Int("events_applied", result.Events),
			zap.Int("discarded_failures", len(failures)),
			zap.Error(err),
		)
		return result, err
	}

	// Failures are reported once the rebuild is committed so the reporter
	// never writes inside, or waits on, the replay transaction.
	for _, failure := range failures {
		b.opts.Reporter.ReportHandlerFailure(ctx, failure)
	}

	span.SetAttributes(
		attribute.Int("replay.events", result.Events),
		attribute.Int("replay.failures", result.Failures),
	)
	b.log.Info("replay finished",
		zap.Strings("projectors", result.Projectors),
		zap.Int("events", result.Events),
		zap.Uint64("last_seq", result.LastSeq),
		zap.Int("failures", result.Failures),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (b *Bus) replay(ctx context.Context, selected []Projector, result *ReplayResult, failures *[]Failure) error {
	result.Events, result.Failures, result.LastSeq = 0, 0, 0
	for _, p := range selected {
		if err := p.Reset(ctx); err != nil {
			return fmt.Errorf("reset projector %s: %w", p.Name(), err)
		}
	}

	var after uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := b.store.ReadPage(ctx, after, b.opts.ReplayPageSize)
		if err != nil {
			return err
		}
		for _, evt := range page {
			for _, p := range selected {
				if failure, ok := b.apply(ctx, p, metrics.HandlerKindProjector, evt, true); !ok {
					result.Failures++
					*failures = append(*failures, failure)
				}
			}
			result.Events++
			result.LastSeq = evt.Seq
			after = evt.Seq
		}
		if len(page) < b.opts.ReplayPageSize {
			return nil
		}
	}
}

func (b *Bus) selectProjectors(names []string) ([]Projector, error) {
	if len(names) == 0 {
		return append([]Projector(nil), b.projectors...), nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[name] = struct{}{}
	}
	selected := make([]Projector, 0, len(names))
	for _, p := range b.projectors {
		if _, ok := wanted[p.Name()]; ok {
			selected = append(selected, p)
			delete(wanted, p.Name())
		}
	}
	for _, name := range names {
		if _, missing := wanted[name]; missing {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProjector, name)
		}
	}
	return selected, nil
}

// apply runs one handler for one event. On failure it returns the Failure
// for the caller to report. Every handler runs in its own savepoint when ctx
// carries a transaction, so a failed statement cannot poison the replay.
func (b *Bus) apply(ctx context.Context, h Handler, kind string, evt event.Event, replay bool) (Failure, bool) {
	if !h.Handles(evt.Type) {
		return Failure{}, true
	}

	ctx, span := b.tracer.Start(ctx, "eventbus.apply", trace.WithAttributes(
		attribute.String("handler", h.Name()),
		attribute.String("event.type", string(evt.Type)),
		attribute.Int64("event.seq", int64(evt.Seq)),
	))
	start := time.Now()
	defer func() {
		b.opts.Metrics.ObserveHandlerDuration(h.Name(), kind, time.Since(start))
		span.End()
	}()

	var err error
	if replay {
		err = b.opts.Transactor.InTx(ctx, func(ctx context.Context) error {
			return safeApply(ctx, h, evt)
		})
	} else {
		err = safeApply(ctx, h, evt)
	}
	if err == nil {
		return Failure{}, true
	}

	reason := metrics.ClassifyReason(err)
	switch {
	case errors.Is(err, ErrProjectionInconsistency):
		reason = metrics.ReasonInconsistency
	case errors.Is(err, errHandlerPanic):
		reason = metrics.ReasonPanic
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	b.opts.Metrics.IncHandlerFailure(h.Name(), kind, reason)
	b.opts.OtelMetrics.RecordHandlerFailure(ctx, h.Name(), reason)
	return Failure{
		Handler: h.Name(),
		Kind:    kind,
		Event:   evt,
		Replay:  replay,
		Err:     err,
	}, false
}

var errHandlerPanic = errors.New("handler_panic")

func safeApply(ctx context.Context, h Handler, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", errHandlerPanic, r, debug.Stack())
		}
	}()
	return h.Apply(ctx, evt)
}
