package eventbus

import "errors"

var (
	// ErrProjectionInconsistency means an event referenced a read-model row
	// that no earlier event created.
	ErrProjectionInconsistency = errors.New("projection_inconsistency")
	ErrUnknownProjector        = errors.New("unknown_projector")
	ErrDuplicateHandler        = errors.New("duplicate_handler")
	ErrReplayInProgress        = errors.New("replay_in_progress")
	ErrReplayLocked            = errors.New("replay_locked")
)
