package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Handle identifies an enqueued job. Duplicate is set when the command's
// dedupe key was already queued and JobID refers to the earlier job.
type Handle struct {
	JobID     snowflake.ID `json:"job_id"`
	Duplicate bool         `json:"duplicate"`
}

// Queue accepts commands for asynchronous execution.
type Queue interface {
	Enqueue(ctx context.Context, cmd Command) (Handle, error)
}

// Executor performs one command against the external system. Returning an
// error wrapped with backoff.Permanent skips the remaining retries.
type Executor interface {
	Execute(ctx context.Context, job Job, cmd Command) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, job Job, cmd Command) error

func (f ExecutorFunc) Execute(ctx context.Context, job Job, cmd Command) error {
	return f(ctx, job, cmd)
}

// Executors maps each command to the executor that performs it.
type Executors map[CommandName]Executor

// Failure describes a job that exhausted its retries.
type Failure struct {
	JobID         snowflake.ID
	Command       CommandName
	CustomerID    int64
	Attempts      int
	EventSeq      uint64
	CorrelationID string
	Err           error
}

// Reporter receives ExternalActionFailed notifications.
type Reporter interface {
	ReportJobFailure(ctx context.Context, failure Failure)
}

type Service interface {
	List(ctx context.Context, filter ListJobFilter) ([]Job, error)
}

var (
	ErrInvalidCommand = errors.New("invalid_command")
	ErrUnknownCommand = errors.New("unknown_command")
	// ErrExternalActionFailed marks a job that exhausted its retries.
	ErrExternalActionFailed = errors.New("external_action_failed")
	ErrInvalidStatus        = errors.New("invalid_status")
)
