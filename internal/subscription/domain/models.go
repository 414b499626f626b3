package domain

import (
	"strings"
	"time"
)

// Status mirrors the store's subscription statuses plus the local
// need-id-check state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusOnHold        Status = "on-hold"
	StatusCancelled     Status = "cancelled"
	StatusSwitched      Status = "switched"
	StatusExpired       Status = "expired"
	StatusPendingCancel Status = "pending-cancel"
	StatusNeedIDCheck   Status = "need-id-check"
)

// NormalizeStatus lowercases s and strips the "wc-" prefix the store uses for
// post statuses.
func NormalizeStatus(s string) Status {
	s = strings.ToLower(strings.TrimSpace(s))
	return Status(strings.TrimPrefix(s, "wc-"))
}

// Subscription is the read model of a store subscription. CustomerExternalID
// is a lookup reference only.
type Subscription struct {
	ExternalID         int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	CustomerExternalID int64     `gorm:"not null;index" json:"customer_id"`
	Status             Status    `gorm:"type:varchar(32);not null" json:"status"`
	LastEventSeq       uint64    `gorm:"not null;default:0" json:"last_event_seq"`
	CreatedAt          time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }
