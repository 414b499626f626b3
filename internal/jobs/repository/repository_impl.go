package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/denhac/memberbridge/internal/jobs/domain"
	"gorm.io/gorm"
)

const jobColumns = `id, command, entity_key, payload, dedupe_key, status, attempts, max_attempts,
	next_run_at, locked_at, last_error, correlation_id, event_seq, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, job *domain.Job) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Command,
		job.EntityKey,
		job.Payload,
		job.DedupeKey,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.NextRunAt,
		job.LockedAt,
		job.LastError,
		job.CorrelationID,
		job.EventSeq,
		job.CreatedAt,
		job.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Job, error) {
	return r.findOne(ctx, db, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
}

func (r *repo) FindByDedupeKey(ctx context.Context, db *gorm.DB, key string) (*domain.Job, error) {
	return r.findOne(ctx, db, `SELECT `+jobColumns+` FROM jobs WHERE dedupe_key = ?`, key)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Job, error) {
	var job domain.Job
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&job).Error; err != nil {
		return nil, err
	}
	if job.ID == 0 {
		return nil, nil
	}
	return &job, nil
}

// ListClaimable only returns the head of each entity's queue: a job is
// skipped while an older job for the same entity is still pending or
// running, including one waiting out a retry delay.
func (r *repo) ListClaimable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := db.WithContext(ctx).Raw(
		`SELECT `+jobColumns+` FROM jobs j
		 WHERE j.status = ? AND j.next_run_at <= ?
		   AND NOT EXISTS (
		     SELECT 1 FROM jobs o
		     WHERE o.entity_key = j.entity_key
		       AND o.status IN (?, ?)
		       AND o.id < j.id
		   )
		 ORDER BY j.id ASC
		 LIMIT ?`,
		domain.StatusPending,
		now,
		domain.StatusPending,
		domain.StatusRunning,
		limit,
	).Scan(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE jobs SET status = ?, locked_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusRunning,
		now,
		now,
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE jobs SET status = ?, attempts = ?, locked_at = NULL, last_error = '', updated_at = ?
		 WHERE id = ?`,
		domain.StatusSucceeded,
		attempts,
		now,
		id,
	).Error
}

func (r *repo) MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, nextRunAt time.Time, lastErr string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE jobs SET status = ?, attempts = ?, next_run_at = ?, locked_at = NULL, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusPending,
		attempts,
		nextRunAt,
		lastErr,
		now,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastErr string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE jobs SET status = ?, attempts = ?, locked_at = NULL, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		domain.StatusFailed,
		attempts,
		lastErr,
		now,
		id,
	).Error
}

func (r *repo) RequeueStale(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE jobs SET status = ?, locked_at = NULL, updated_at = ?
		 WHERE status = ? AND locked_at IS NOT NULL AND locked_at < ?`,
		domain.StatusPending,
		now,
		domain.StatusRunning,
		cutoff,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListJobFilter) ([]domain.Job, error) {
	var jobs []domain.Job
	stmt := db.WithContext(ctx).Model(&domain.Job{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.EntityKey != "" {
		stmt = stmt.Where("entity_key = ?", filter.EntityKey)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if err := stmt.Order("id DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
