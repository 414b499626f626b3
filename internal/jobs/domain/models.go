package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is one enqueued command and its execution state.
type Job struct {
	ID            snowflake.ID   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Command       CommandName    `gorm:"type:varchar(64);not null" json:"command"`
	EntityKey     string         `gorm:"type:varchar(64);not null;index:idx_jobs_entity_status,priority:1" json:"entity_key"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	DedupeKey     string         `gorm:"type:varchar(191);not null;uniqueIndex" json:"dedupe_key"`
	Status        Status         `gorm:"type:varchar(16);not null;index;index:idx_jobs_entity_status,priority:2" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int            `gorm:"not null" json:"max_attempts"`
	NextRunAt     time.Time      `gorm:"not null;index" json:"next_run_at"`
	LockedAt      *time.Time     `json:"locked_at,omitempty"`
	LastError     string         `gorm:"type:text;not null;default:''" json:"last_error,omitempty"`
	CorrelationID string         `gorm:"type:varchar(64);not null;default:''" json:"correlation_id"`
	EventSeq      uint64         `gorm:"not null;default:0" json:"event_seq"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }
