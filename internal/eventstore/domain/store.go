package domain

import (
	"context"
	"errors"

	"github.com/denhac/memberbridge/internal/event"
)

var (
	// ErrStoreUnavailable means the event was not durably persisted. The
	// caller must treat the originating operation as not having happened.
	ErrStoreUnavailable = errors.New("store_unavailable")
	ErrInvalidEvent     = errors.New("invalid_event")
)

// Store is the append-only journal. Append is the only mutation.
type Store interface {
	// Append persists payload at the next sequence number and returns the
	// stored event. Sequence numbers start at 1 and have no gaps.
	Append(ctx context.Context, payload event.Payload) (event.Event, error)
	// ReadAll returns every event, oldest first.
	ReadAll(ctx context.Context) ([]event.Event, error)
	// ReadSince returns events with Seq > afterSeq, oldest first.
	ReadSince(ctx context.Context, afterSeq uint64) ([]event.Event, error)
	// ReadPage returns at most limit events with Seq > afterSeq.
	ReadPage(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	// LastSeq returns the highest assigned sequence number, or 0 when empty.
	LastSeq(ctx context.Context) (uint64, error)
}
