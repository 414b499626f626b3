package service

import (
	"context"
	"strconv"

	"github.com/denhac/memberbridge/internal/audit/domain"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	jobsdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	"github.com/denhac/memberbridge/internal/observability/logger"
	"github.com/denhac/memberbridge/internal/observability/tracing"
	"go.uber.org/zap"
)

// Sink is where isolated failures end up: the error log and the audit
// table. Writing the audit row is best effort.
type Sink struct {
	log   *zap.Logger
	audit domain.Service
}

func NewSink(log *zap.Logger, audit domain.Service) *Sink {
	return &Sink{log: log.Named("audit.sink"), audit: audit}
}

func (s *Sink) ReportHandlerFailure(ctx context.Context, f eventbus.Failure) {
	action := domain.ActionHandlerFailed
	if f.Inconsistent() {
		action = domain.ActionProjectionInconsistency
	}

	logger.WithEvent(logger.WithContext(ctx, s.log), f.Event.Seq, string(f.Event.Type)).Error("handler failure",
		zap.String("action", action),
		zap.String("handler", f.Handler),
		zap.String("kind", f.Kind),
		zap.Bool("replay", f.Replay),
		zap.Error(f.Err),
	)

	metadata := map[string]any{
		"handler":    f.Handler,
		"kind":       f.Kind,
		"event_seq":  f.Event.Seq,
		"event_type": string(f.Event.Type),
		"replay":     f.Replay,
		"error":      errorText(f.Err),
	}
	targetType, targetID := "event", strconv.FormatUint(f.Event.Seq, 10)
	if f.Event.Payload != nil {
		if id, ok := event.CustomerID(f.Event.Payload); ok {
			metadata["customer_id"] = id
		}
	}

	s.record(ctx, domain.Entry{
		ActorType:  domain.ActorTypeSystem,
		ActorID:    f.Handler,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
}

func (s *Sink) ReportJobFailure(ctx context.Context, f jobsdomain.Failure) {
	logger.WithContext(ctx, s.log).Error("external action failed",
		zap.String("job_id", f.JobID.String()),
		zap.String("command", string(f.Command)),
		zap.Int64("customer_id", f.CustomerID),
		zap.Int("attempts", f.Attempts),
		zap.Error(f.Err),
	)

	s.record(ctx, domain.Entry{
		ActorType:  domain.ActorTypeSystem,
		ActorID:    "jobs.worker",
		Action:     domain.ActionExternalActionFailed,
		TargetType: "job",
		TargetID:   f.JobID.String(),
		Metadata: map[string]any{
			"command":     string(f.Command),
			"customer_id": f.CustomerID,
			"attempts":    f.Attempts,
			"event_seq":   f.EventSeq,
			"error":       errorText(f.Err),
		},
	})
}

func (s *Sink) record(ctx context.Context, entry domain.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return tracing.SafeError(err).Error()
}
