package eventbus

import (
	"context"
	"errors"

	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/observability/logger"
	"go.uber.org/zap"
)

// Failure describes one handler invocation that returned an error or
// panicked.
type Failure struct {
	Handler string
	Kind    string
	Event   event.Event
	Replay  bool
	Err     error
}

// Inconsistent reports whether the failure signals a missing earlier event.
func (f Failure) Inconsistent() bool {
	return errors.Is(f.Err, ErrProjectionInconsistency)
}

// Reporter is the observability sink for isolated handler failures.
type Reporter interface {
	ReportHandlerFailure(ctx context.Context, failure Failure)
}

// LogReporter writes failures to the log only.
type LogReporter struct {
	log *zap.Logger
}

func NewLogReporter(log *zap.Logger) *LogReporter {
	return &LogReporter{log: log.Named("eventbus.reporter")}
}

func (r *LogReporter) ReportHandlerFailure(ctx context.Context, f Failure) {
	logger.WithEvent(logger.WithContext(ctx, r.log), f.Event.Seq, string(f.Event.Type)).Error("handler failure",
		zap.String("handler", f.Handler),
		zap.String("kind", f.Kind),
		zap.Bool("replay", f.Replay),
		zap.Bool("inconsistent", f.Inconsistent()),
		zap.Error(f.Err),
	)
}
