package domain

import (
	"context"

	"github.com/denhac/memberbridge/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCustomerFilter struct {
	IsMember *bool
	Email    string
}

type Repository interface {
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID int64) (*Customer, error)
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	Delete(ctx context.Context, db *gorm.DB, externalID int64) (int64, error)
	Truncate(ctx context.Context, db *gorm.DB) error
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
}
