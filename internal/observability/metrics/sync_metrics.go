package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Handler kinds.
const (
	HandlerKindProjector = "projector"
	HandlerKindReactor   = "reactor"
)

// Low-cardinality failure reasons.
const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDB                   = "db"
	ReasonPanic                = "panic"
	ReasonInconsistency        = "inconsistency"
	ReasonUnknown              = "unknown"
)

// Job outcome statuses.
const (
	JobStatusSucceeded = "succeeded"
	JobStatusRetried   = "retried"
	JobStatusFailed    = "failed"
)

// SyncMetrics captures journal, dispatch, replay and job-queue health.
type SyncMetrics struct {
	eventsAppended  *prometheus.CounterVec
	appendErrors    prometheus.Counter
	handlerFailures *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	replayRuns      *prometheus.CounterVec
	replayEvents    prometheus.Counter
	replayDuration  prometheus.Observer
	jobsEnqueued    *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobBacklog      prometheus.Gauge
	runLoopLag      prometheus.Observer
}

var (
	syncMetricsOnce sync.Once
	syncMetrics     *SyncMetrics
)

// Sync returns the singleton sync metrics registry.
func Sync() *SyncMetrics {
	return SyncWithConfig(Config{})
}

// SyncWithConfig returns the singleton sync metrics registry using config labels.
func SyncWithConfig(cfg Config) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		syncMetrics = newSyncMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return syncMetrics
}

// ResetSyncMetricsForTest resets the sync metrics singleton for tests.
func ResetSyncMetricsForTest() {
	syncMetricsOnce = sync.Once{}
	syncMetrics = nil
}

// NewSyncMetricsForTest builds an isolated registry-backed instance.
func NewSyncMetricsForTest(registerer prometheus.Registerer) *SyncMetrics {
	return newSyncMetrics(registerer, Config{ServiceName: "memberbridge", Environment: "test"})
}

func newSyncMetrics(registerer prometheus.Registerer, cfg Config) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "memberbridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	eventsAppended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberbridge_journal_events_appended_total",
		Help:        "Events appended to the journal by type.",
		ConstLabels: constLabels,
	}, []string{"event_type"})
	appendErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "memberbridge_journal_append_errors_total",
		Help:        "Journal appends rejected because storage was unavailable.",
		ConstLabels: constLabels,
	})
	handlerFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberbridge_handler_failures_total",
		Help:        "Projector and reactor failures by handler and reason.",
		ConstLabels: constLabels,
	}, []string{"handler", "kind", "reason"})
	handlerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "memberbridge_handler_duration_seconds",
		Help:        "Time spent applying a single event per handler.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"handler", "kind"})
	replayRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberbridge_replay_runs_total",
		Help:        "Read model rebuilds by outcome.",
		ConstLabels: constLabels,
	}, []string{"status"})
	replayEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "memberbridge_replay_events_total",
		Help:        "Events read back from the journal during rebuilds.",
		ConstLabels: constLabels,
	})
	replayDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "memberbridge_replay_duration_seconds",
		Help:        "Wall time of full read model rebuilds.",
		Buckets:     []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	})
	jobsEnqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberbridge_jobs_enqueued_total",
		Help:        "Commands handed to the job queue by command and result.",
		ConstLabels: constLabels,
	}, []string{"command", "result"})
	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "memberbridge_job_runs_total",
		Help:        "Job attempts by command and outcome.",
		ConstLabels: constLabels,
	}, []string{"command", "status"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "memberbridge_job_duration_seconds",
		Help:        "Job attempt latency against the chat workspace.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"command"})
	jobBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "memberbridge_job_backlog",
		Help:        "Jobs claimed in the last worker batch.",
		ConstLabels: constLabels,
	})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "memberbridge_worker_runloop_lag_seconds",
		Help:        "Worker run loop lag beyond the configured poll interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		eventsAppended,
		appendErrors,
		handlerFailures,
		handlerDuration,
		replayRuns,
		replayEvents,
		replayDuration,
		jobsEnqueued,
		jobRuns,
		jobDuration,
		jobBacklog,
		runLoopLag,
	)

	return &SyncMetrics{
		eventsAppended:  eventsAppended,
		appendErrors:    appendErrors,
		handlerFailures: handlerFailures,
		handlerDuration: handlerDuration,
		replayRuns:      replayRuns,
		replayEvents:    replayEvents,
		replayDuration:  replayDuration,
		jobsEnqueued:    jobsEnqueued,
		jobRuns:         jobRuns,
		jobDuration:     jobDuration,
		jobBacklog:      jobBacklog,
		runLoopLag:      runLoopLag,
	}
}

// IncEventAppended counts a successful journal append.
func (m *SyncMetrics) IncEventAppended(eventType string) {
	if m == nil {
		return
	}
	m.eventsAppended.WithLabelValues(eventType).Inc()
}

// IncAppendError counts an append rejected by storage.
func (m *SyncMetrics) IncAppendError() {
	if m == nil {
		return
	}
	m.appendErrors.Inc()
}

// IncHandlerFailure counts a failed handler invocation.
func (m *SyncMetrics) IncHandlerFailure(handler, kind, reason string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(handler, kind, reason).Inc()
}

// ObserveHandlerDuration records time spent in one handler for one event.
func (m *SyncMetrics) ObserveHandlerDuration(handler, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(handler, kind).Observe(duration.Seconds())
}

// ObserveReplay records a finished rebuild.
func (m *SyncMetrics) ObserveReplay(events int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	m.replayRuns.WithLabelValues(status).Inc()
	m.replayEvents.Add(float64(events))
	m.replayDuration.Observe(duration.Seconds())
}

// IncJobEnqueued counts a command handed to the queue.
func (m *SyncMetrics) IncJobEnqueued(command string, duplicate bool) {
	if m == nil {
		return
	}
	result := "queued"
	if duplicate {
		result = "duplicate"
	}
	m.jobsEnqueued.WithLabelValues(command, result).Inc()
}

// ObserveJobRun records one job attempt.
func (m *SyncMetrics) ObserveJobRun(command, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(command, status).Inc()
	m.jobDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// SetJobBacklog records how many jobs the last batch claimed.
func (m *SyncMetrics) SetJobBacklog(count int) {
	if m == nil {
		return
	}
	m.jobBacklog.Set(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SyncMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	m.runLoopLag.Observe(duration.Seconds())
}

// ClassifyReason maps errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return ReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return ReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return ReasonUniqueViolation
	}
	if isDBError(err) {
		return ReasonDB
	}
	return ReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
