package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "db", err: &pgconn.PgError{Code: "42P01"}, want: ReasonDB},
		{name: "unknown", err: errors.New("boom"), want: ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyReason(tc.err))
		})
	}
}

func TestSyncMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSyncMetricsForTest(registry)

	m.IncHandlerFailure("customers", HandlerKindProjector, ReasonInconsistency)
	m.IncHandlerFailure("customers", HandlerKindProjector, ReasonInconsistency)
	m.IncJobEnqueued("slack.add_to_channel", true)
	m.ObserveJobRun("slack.add_to_channel", JobStatusSucceeded, 20*time.Millisecond)
	m.ObserveReplay(12, time.Second, nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.handlerFailures.WithLabelValues("customers", HandlerKindProjector, ReasonInconsistency)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsEnqueued.WithLabelValues("slack.add_to_channel", "duplicate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("slack.add_to_channel", JobStatusSucceeded)))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.replayEvents))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.replayRuns.WithLabelValues("succeeded")))
}

func TestNilSyncMetricsAreSafe(t *testing.T) {
	var m *SyncMetrics
	assert.NotPanics(t, func() {
		m.IncEventAppended("customer.created")
		m.ObserveReplay(1, time.Second, errors.New("x"))
		m.SetJobBacklog(3)
	})
}
