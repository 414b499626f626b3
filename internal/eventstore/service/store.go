package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventstore/domain"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/pkg/db"
	"github.com/denhac/memberbridge/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	readAllPageSize     = 500
	maxSeqConflictRetry = 3
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *metrics.SyncMetrics `optional:"true"`
}

// Store is the gorm-backed journal. Appends in this process are serialized
// by mu; a unique primary key on seq rejects racing writers in other
// processes, which then retry with the next number.
type Store struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	metrics *metrics.SyncMetrics
	tracer  trace.Tracer

	mu sync.Mutex
}

func New(p Params) domain.Store {
	return &Store{
		db:      p.DB,
		log:     p.Log.Named("eventstore.service"),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
		tracer:  otel.Tracer("memberbridge/eventstore"),
	}
}

func (s *Store) Append(ctx context.Context, payload event.Payload) (event.Event, error) {
	if payload == nil {
		return event.Event{}, domain.ErrInvalidEvent
	}
	eventType := payload.EventType()
	if !event.Known(eventType) {
		return event.Event{}, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidEvent, eventType)
	}
	if err := event.Validate(payload); err != nil {
		return event.Event{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}
	data, err := event.Encode(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}

	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	ctx, span := s.tracer.Start(ctx, "eventstore.append", trace.WithAttributes(
		attribute.String("event.type", string(eventType)),
	))
	defer span.End()

	record := domain.StoredEvent{
		EventType:     string(eventType),
		Payload:       datatypes.JSON(data),
		CorrelationID: correlationID,
		Hash:          event.ContentHash(eventType, data),
		CreatedAt:     s.clock.Now().UTC(),
	}

	if err := s.insertNext(ctx, &record); err != nil {
		s.metrics.IncAppendError()
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.log.Error("append event failed",
			zap.String("event_type", string(eventType)),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return event.Event{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.Int64("event.seq", int64(record.Seq)))
	s.metrics.IncEventAppended(string(eventType))

	return event.Event{
		Seq:           record.Seq,
		Type:          eventType,
		Payload:       payload,
		Timestamp:     record.CreatedAt,
		CorrelationID: record.CorrelationID,
		Hash:          record.Hash,
	}, nil
}

func (s *Store) insertNext(ctx context.Context, record *domain.StoredEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < maxSeqConflictRetry; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			last, err := s.repo.LastSeq(ctx, tx)
			if err != nil {
				return err
			}
			record.Seq = last + 1
			return s.repo.Insert(ctx, tx, record)
		})
		if err == nil || !db.IsDuplicateKeyErr(err) {
			return err
		}
		s.log.Warn("sequence taken by another writer, retrying",
			zap.Uint64("seq", record.Seq),
			zap.Int("attempt", attempt+1),
		)
	}
	return err
}

func (s *Store) ReadAll(ctx context.Context) ([]event.Event, error) {
	var (
		out   []event.Event
		after uint64
	)
	for {
		page, err := s.ReadPage(ctx, after, readAllPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < readAllPageSize {
			return out, nil
		}
		after = page[len(page)-1].Seq
	}
}

func (s *Store) ReadSince(ctx context.Context, afterSeq uint64) ([]event.Event, error) {
	rows, err := s.repo.ListAfter(ctx, db.Conn(ctx, s.db), afterSeq, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return decodeRows(rows)
}

func (s *Store) ReadPage(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("page limit must be positive, got %d", limit)
	}
	rows, err := s.repo.ListAfter(ctx, db.Conn(ctx, s.db), afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return decodeRows(rows)
}

func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	seq, err := s.repo.LastSeq(ctx, db.Conn(ctx, s.db))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return seq, nil
}

func decodeRows(rows []domain.StoredEvent) ([]event.Event, error) {
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		eventType := event.Type(row.EventType)
		payload, err := event.Decode(eventType, row.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode event %d (%s): %w", row.Seq, row.EventType, err)
		}
		events = append(events, event.Event{
			Seq:           row.Seq,
			Type:          eventType,
			Payload:       payload,
			Timestamp:     row.CreatedAt.UTC(),
			CorrelationID: row.CorrelationID,
			Hash:          row.Hash,
		})
	}
	return events, nil
}
