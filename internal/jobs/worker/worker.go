package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/observability/logger"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/internal/observability/tracing"
	"github.com/denhac/memberbridge/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const maxErrorLength = 1024

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Repo        domain.Repository
	Config      config.Config
	Executors   domain.Executors
	Reporter    domain.Reporter      `optional:"true"`
	Metrics     *metrics.SyncMetrics `optional:"true"`
	OtelMetrics *metrics.Metrics     `optional:"true"`
}

// Worker drains the jobs table. Each pass claims the head job of every
// entity that has one due, runs them in parallel up to Concurrency, and
// either completes, reschedules or fails each job.
type Worker struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	cfg         config.WorkerConfig
	executors   domain.Executors
	reporter    domain.Reporter
	metrics     *metrics.SyncMetrics
	otelMetrics *metrics.Metrics
	tracer      trace.Tracer
	jitter      float64
}

func New(p Params) *Worker {
	return &Worker{
		db:          p.DB,
		log:         p.Log.Named("jobs.worker"),
		clock:       p.Clock,
		repo:        p.Repo,
		cfg:         withDefaults(p.Config.Worker),
		executors:   p.Executors,
		reporter:    p.Reporter,
		metrics:     p.Metrics,
		otelMetrics: p.OtelMetrics,
		tracer:      otel.Tracer("memberbridge/jobs"),
		jitter:      backoff.DefaultRandomizationFactor,
	}
}

func withDefaults(cfg config.WorkerConfig) config.WorkerConfig {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.ExecuteTimeout <= 0 {
		cfg.ExecuteTimeout = 30 * time.Second
	}
	return cfg
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(w.cfg.PollInterval)

	for {
		if lag := time.Since(nextRun); lag > 0 {
			w.metrics.ObserveRunLoopLag(lag)
		}
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("job worker pass failed", zap.Error(err))
		}
		nextRun = nextRun.Add(w.cfg.PollInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single pass and returns how many jobs it ran.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()

	requeued, err := w.repo.RequeueStale(ctx, w.db, now.Add(-w.cfg.StaleAfter), now)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	if requeued > 0 {
		w.log.Warn("requeued stale jobs", zap.Int64("count", requeued))
	}

	jobs, err := w.repo.ListClaimable(ctx, w.db, now, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list claimable jobs: %w", err)
	}
	w.metrics.SetJobBacklog(len(jobs))
	if len(jobs) == 0 {
		return 0, nil
	}

	// Jobs are independent: one failed bookkeeping write must not cancel
	// the others.
	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)

	ran := make(chan struct{}, len(jobs))
	for _, job := range jobs {
		g.Go(func() error {
			claimed, err := w.repo.Claim(ctx, w.db, job.ID, w.clock.Now())
			if err != nil {
				return fmt.Errorf("claim job %s: %w", job.ID, err)
			}
			if !claimed {
				return nil
			}
			ran <- struct{}{}
			return w.run(ctx, job)
		})
	}
	err = g.Wait()
	close(ran)
	return len(ran), err
}

// run executes one claimed job and records the outcome. The returned error
// only reports bookkeeping failures; execution errors are stored on the job.
func (w *Worker) run(ctx context.Context, job domain.Job) error {
	start := time.Now()

	ctx = correlation.ContextWithCorrelationID(ctx, job.CorrelationID)
	ctx, span := w.tracer.Start(ctx, "jobs.execute", trace.WithAttributes(
		attribute.String("command", string(job.Command)),
		attribute.String("job_id", job.ID.String()),
		attribute.Int("attempt", job.Attempts+1),
	))
	defer span.End()

	log := logger.WithContext(ctx, w.log).With(
		zap.String("job_id", job.ID.String()),
		zap.String("command", string(job.Command)),
		zap.String("entity_key", job.EntityKey),
		zap.Int("attempt", job.Attempts+1),
	)

	execErr := w.execute(ctx, job)
	attempts := job.Attempts + 1
	now := w.clock.Now()

	// A claimed job is running; its outcome is recorded even when the pass
	// is being cancelled.
	ctx = context.WithoutCancel(ctx)

	var status string
	var err error
	switch {
	case execErr == nil:
		status = metrics.JobStatusSucceeded
		err = w.repo.MarkSucceeded(ctx, w.db, job.ID, attempts, now)
		log.Info("job succeeded")

	case isPermanent(execErr) || attempts >= job.MaxAttempts:
		status = metrics.JobStatusFailed
		err = w.repo.MarkFailed(ctx, w.db, job.ID, attempts, truncate(execErr.Error()), now)
		log.Error("job failed", zap.Error(execErr))
		w.report(ctx, job, attempts, execErr)

	default:
		status = metrics.JobStatusRetried
		next := now.Add(w.retryDelay(attempts))
		err = w.repo.MarkRetry(ctx, w.db, job.ID, attempts, next, truncate(execErr.Error()), now)
		log.Warn("job will retry", zap.Time("next_run_at", next), zap.Error(execErr))
	}

	if execErr != nil {
		span.RecordError(tracing.SafeError(execErr))
		span.SetStatus(codes.Error, status)
	}
	w.metrics.ObserveJobRun(string(job.Command), status, time.Since(start))
	w.otelMetrics.RecordJobOutcome(ctx, string(job.Command), status)

	if err != nil {
		return fmt.Errorf("record job %s outcome: %w", job.ID, err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, job domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("executor panic: %v\n%s", r, debug.Stack())
		}
	}()

	executor, ok := w.executors[job.Command]
	if !ok {
		return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrUnknownCommand, job.Command))
	}

	var cmd domain.Command
	if err := json.Unmarshal(job.Payload, &cmd); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %w", domain.ErrInvalidCommand, err))
	}
	cmd.Name = job.Command
	cmd.DedupeKey = job.DedupeKey
	cmd.EventSeq = job.EventSeq
	cmd.CorrelationID = job.CorrelationID

	ctx, cancel := context.WithTimeout(ctx, w.cfg.ExecuteTimeout)
	defer cancel()
	return executor.Execute(ctx, job, cmd)
}

func (w *Worker) report(ctx context.Context, job domain.Job, attempts int, execErr error) {
	if w.reporter == nil {
		return
	}
	w.reporter.ReportJobFailure(ctx, domain.Failure{
		JobID:         job.ID,
		Command:       job.Command,
		CustomerID:    customerID(job),
		Attempts:      attempts,
		EventSeq:      job.EventSeq,
		CorrelationID: job.CorrelationID,
		Err:           fmt.Errorf("%w: %w", domain.ErrExternalActionFailed, execErr),
	})
}

// retryDelay is the exponential backoff interval before attempt+1.
func (w *Worker) retryDelay(attempt int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     w.cfg.InitialBackoff,
		RandomizationFactor: w.jitter,
		Multiplier:          2,
		MaxInterval:         w.cfg.MaxBackoff,
	}
	b.Reset()

	var delay time.Duration
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func isPermanent(err error) bool {
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}

func customerID(job domain.Job) int64 {
	var cmd domain.Command
	if err := json.Unmarshal(job.Payload, &cmd); err != nil {
		return 0
	}
	return cmd.CustomerID
}

func truncate(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return msg[:maxErrorLength]
}
