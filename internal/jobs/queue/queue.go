package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/observability/logger"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultMaxAttempts = 8

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Config      config.Config
	Metrics     *metrics.SyncMetrics `optional:"true"`
	OtelMetrics *metrics.Metrics     `optional:"true"`
}

// Queue stores commands in the jobs table for the worker pool.
type Queue struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	maxAttempts int
	metrics     *metrics.SyncMetrics
	otelMetrics *metrics.Metrics
}

func New(p Params) *Queue {
	maxAttempts := p.Config.Worker.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Queue{
		db:          p.DB,
		log:         p.Log.Named("jobs.queue"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		maxAttempts: maxAttempts,
		metrics:     p.Metrics,
		otelMetrics: p.OtelMetrics,
	}
}

// Enqueue persists cmd as a pending job. A command whose dedupe key is
// already queued is not stored again; the handle points at the first job.
func (q *Queue) Enqueue(ctx context.Context, cmd domain.Command) (domain.Handle, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Handle{}, err
	}

	id := q.genID.Generate()
	if cmd.DedupeKey == "" {
		cmd.DedupeKey = "manual:" + id.String()
	}

	existing, err := q.repo.FindByDedupeKey(ctx, q.db, cmd.DedupeKey)
	if err != nil {
		return domain.Handle{}, err
	}
	if existing != nil {
		q.recordEnqueued(ctx, cmd, true)
		return domain.Handle{JobID: existing.ID, Duplicate: true}, nil
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return domain.Handle{}, fmt.Errorf("encode command: %w", err)
	}

	now := q.clock.Now()
	job := &domain.Job{
		ID:            id,
		Command:       cmd.Name,
		EntityKey:     cmd.EntityKey(),
		Payload:       datatypes.JSON(payload),
		DedupeKey:     cmd.DedupeKey,
		Status:        domain.StatusPending,
		MaxAttempts:   q.maxAttempts,
		NextRunAt:     now,
		CorrelationID: cmd.CorrelationID,
		EventSeq:      cmd.EventSeq,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := q.repo.Insert(ctx, q.db, job); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return domain.Handle{}, err
		}
		existing, findErr := q.repo.FindByDedupeKey(ctx, q.db, cmd.DedupeKey)
		if findErr != nil || existing == nil {
			return domain.Handle{}, err
		}
		q.recordEnqueued(ctx, cmd, true)
		return domain.Handle{JobID: existing.ID, Duplicate: true}, nil
	}

	q.recordEnqueued(ctx, cmd, false)
	logger.WithContext(ctx, q.log).Debug("command enqueued",
		zap.String("command", string(cmd.Name)),
		zap.Int64("customer_id", cmd.CustomerID),
		zap.String("job_id", id.String()),
		zap.Uint64("event_seq", cmd.EventSeq),
	)
	return domain.Handle{JobID: id}, nil
}

func (q *Queue) recordEnqueued(ctx context.Context, cmd domain.Command, duplicate bool) {
	q.metrics.IncJobEnqueued(string(cmd.Name), duplicate)
	q.otelMetrics.RecordCommandEnqueued(ctx, string(cmd.Name), duplicate)
}
