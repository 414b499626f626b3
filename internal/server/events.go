package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	auditdomain "github.com/denhac/memberbridge/internal/audit/domain"
	"github.com/denhac/memberbridge/internal/event"
	"github.com/denhac/memberbridge/internal/eventbus"
	"github.com/gin-gonic/gin"
)

type appendEventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type eventResponse struct {
	Seq           uint64        `json:"seq"`
	Type          event.Type    `json:"type"`
	Payload       event.Payload `json:"payload"`
	Timestamp     string        `json:"timestamp"`
	CorrelationID string        `json:"correlation_id"`
	Hash          string        `json:"hash"`
}

// AppendEvent records one typed event. Webhook translators post here.
func (s *Server) AppendEvent(c *gin.Context) {
	var req appendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	eventType := event.Type(strings.TrimSpace(req.Type))
	if !event.Known(eventType) {
		AbortWithError(c, newValidationError("type", "invalid_event_type", "unknown event type"))
		return
	}
	c.Set("event_type", string(eventType))

	payload, err := event.Decode(eventType, req.Payload)
	if err != nil {
		AbortWithError(c, newValidationError("payload", "invalid_event_payload", "invalid payload"))
		return
	}
	if err := event.Validate(payload); err != nil {
		AbortWithError(c, newValidationError("payload", "invalid_event_payload", "store ids must be positive"))
		return
	}

	evt, err := s.bus.Append(c.Request.Context(), payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": eventResponse{
		Seq:           evt.Seq,
		Type:          evt.Type,
		Payload:       evt.Payload,
		Timestamp:     evt.Timestamp.UTC().Format(time.RFC3339Nano),
		CorrelationID: evt.CorrelationID,
		Hash:          evt.Hash,
	}})
}

type replayRequest struct {
	Projectors []string `json:"projectors"`
}

// Replay rebuilds read models from the journal. An empty body rebuilds all.
func (s *Server) Replay(c *gin.Context) {
	var req replayRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	names := make([]string, 0, len(req.Projectors))
	for _, name := range req.Projectors {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	// A rebuild runs to completion even if the caller goes away; it rolls
	// back as a whole on failure.
	result, err := s.bus.Replay(context.WithoutCancel(c.Request.Context()), names...)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditEntryForReplay(result))
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func isReplayConflict(err error) bool {
	return errorsIsAny(err, eventbus.ErrReplayInProgress, eventbus.ErrReplayLocked)
}

func auditEntryForReplay(result eventbus.ReplayResult) auditdomain.Entry {
	return auditdomain.Entry{
		Action:     auditdomain.ActionReplayCompleted,
		TargetType: "journal",
		Metadata: map[string]any{
			"projectors":  result.Projectors,
			"events":      result.Events,
			"last_seq":    result.LastSeq,
			"failures":    result.Failures,
			"duration_ms": result.Duration.Milliseconds(),
		},
	}
}
