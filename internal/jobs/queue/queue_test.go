package queue

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/internal/config"
	"github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/jobs/repository"
	"github.com/denhac/memberbridge/internal/observability/metrics"
	"github.com/denhac/memberbridge/internal/testkit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newQueue(t *testing.T) (*Queue, domain.Repository, *prometheus.Registry) {
	db := testkit.OpenDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	repo := repository.Provide()

	q := New(Params{
		DB:      db,
		Log:     zaptest.NewLogger(t),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
		Repo:    repo,
		Config:  config.Config{Worker: config.WorkerConfig{MaxAttempts: 5}},
		Metrics: metrics.NewSyncMetricsForTest(reg),
	})
	return q, repo, reg
}

func TestEnqueueStoresPendingJob(t *testing.T) {
	q, repo, _ := newQueue(t)
	ctx := context.Background()

	cmd := domain.AddToChannel(42, "board").WithEvent(7, "cid-1")
	h, err := q.Enqueue(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, h.Duplicate)

	job, err := repo.FindByID(ctx, q.db, h.JobID)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.CommandAddToChannel, job.Command)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, "customer:42", job.EntityKey)
	assert.Equal(t, 5, job.MaxAttempts)
	assert.Equal(t, uint64(7), job.EventSeq)
	assert.Equal(t, "cid-1", job.CorrelationID)
	assert.JSONEq(t, `{"customer_id":42,"channel":"board"}`, string(job.Payload))
}

func TestEnqueueDeduplicates(t *testing.T) {
	q, repo, reg := newQueue(t)
	ctx := context.Background()

	cmd := domain.PromoteToRegularMember(42).WithEvent(9, "")
	first, err := q.Enqueue(ctx, cmd)
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, cmd)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.JobID, second.JobID)

	jobs, err := repo.List(ctx, q.db, domain.ListJobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	n, err := testutil.GatherAndCount(reg, "memberbridge_jobs_enqueued_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnqueueWithoutEventGetsUniqueKey(t *testing.T) {
	q, _, _ := newQueue(t)
	ctx := context.Background()

	a, err := q.Enqueue(ctx, domain.PromoteToRegularMember(1))
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, domain.PromoteToRegularMember(1))
	require.NoError(t, err)

	assert.False(t, b.Duplicate)
	assert.NotEqual(t, a.JobID, b.JobID)
}

func TestEnqueueRejectsInvalid(t *testing.T) {
	q, _, _ := newQueue(t)

	_, err := q.Enqueue(context.Background(), domain.AddToChannel(42, ""))
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)
	_, err = q.Enqueue(context.Background(), domain.PromoteToRegularMember(0))
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)
}
