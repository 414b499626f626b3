package domain

import "time"

// Customer is the read model of a store customer. ExternalID is the store's
// customer id. Timestamps come from the events that produced the row so a
// rebuild reproduces them exactly.
type Customer struct {
	ExternalID   int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Email        string    `gorm:"type:varchar(255);not null;default:''" json:"email"`
	Username     string    `gorm:"type:varchar(255);not null;default:''" json:"username"`
	FirstName    string    `gorm:"type:varchar(255);not null;default:''" json:"first_name"`
	LastName     string    `gorm:"type:varchar(255);not null;default:''" json:"last_name"`
	IsMember     bool      `gorm:"not null;default:false;index" json:"is_member"`
	LastEventSeq uint64    `gorm:"not null;default:0" json:"last_event_seq"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
