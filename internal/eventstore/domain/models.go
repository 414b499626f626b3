package domain

import (
	"time"

	"gorm.io/datatypes"
)

// StoredEvent is the persisted form of a journal entry. Rows are only ever
// inserted.
type StoredEvent struct {
	Seq           uint64         `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	EventType     string         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	CorrelationID string         `gorm:"type:varchar(64);not null;default:''" json:"correlation_id"`
	Hash          string         `gorm:"type:varchar(64);not null" json:"hash"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime:false" json:"created_at"`
}

func (StoredEvent) TableName() string { return "stored_events" }
