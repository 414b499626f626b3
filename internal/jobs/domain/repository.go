package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListJobFilter struct {
	Status    Status
	EntityKey string
	Limit     int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, job *Job) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Job, error)
	FindByDedupeKey(ctx context.Context, db *gorm.DB, key string) (*Job, error)
	// ListClaimable returns due pending jobs that are the oldest unfinished
	// job for their entity key.
	ListClaimable(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Job, error)
	// Claim moves a pending job to running. It reports false when another
	// worker got there first.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	MarkSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, now time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, nextRunAt time.Time, lastErr string, now time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastErr string, now time.Time) error
	// RequeueStale returns running jobs locked before cutoff to pending.
	RequeueStale(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListJobFilter) ([]Job, error)
}
