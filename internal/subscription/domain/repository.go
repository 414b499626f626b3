package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID int64) (*Subscription, error)
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	Delete(ctx context.Context, db *gorm.DB, externalID int64) (int64, error)
	DeleteByCustomer(ctx context.Context, db *gorm.DB, customerExternalID int64) (int64, error)
	ListByCustomer(ctx context.Context, db *gorm.DB, customerExternalID int64) ([]*Subscription, error)
	Truncate(ctx context.Context, db *gorm.DB) error
}
