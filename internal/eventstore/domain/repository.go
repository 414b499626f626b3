package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, evt *StoredEvent) error
	LastSeq(ctx context.Context, db *gorm.DB) (uint64, error)
	ListAfter(ctx context.Context, db *gorm.DB, afterSeq uint64, limit int) ([]StoredEvent, error)
}
