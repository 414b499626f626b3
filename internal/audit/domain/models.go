package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActorTypeSystem   = "system"
	ActorTypeOperator = "operator"
)

// Actions written by the failure sink and operator endpoints.
const (
	ActionProjectionInconsistency = "projection.inconsistency"
	ActionHandlerFailed           = "handler.failed"
	ActionExternalActionFailed    = "external_action.failed"
	ActionReplayCompleted         = "replay.completed"
	ActionFlagChanged             = "flag.changed"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ActorType  string            `gorm:"type:varchar(32);not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:varchar(64)" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID   *string           `gorm:"type:varchar(64)" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
