package repository

import (
	"context"

	"github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID int64) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT external_id, email, username, first_name, last_name, is_member, last_event_seq, created_at, updated_at
		 FROM customers WHERE external_id = ?`,
		externalID,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ExternalID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (external_id, email, username, first_name, last_name, is_member, last_event_seq, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ExternalID,
		customer.Email,
		customer.Username,
		customer.FirstName,
		customer.LastName,
		customer.IsMember,
		customer.LastEventSeq,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET email = ?, username = ?, first_name = ?, last_name = ?, is_member = ?, last_event_seq = ?, updated_at = ?
		 WHERE external_id = ?`,
		customer.Email,
		customer.Username,
		customer.FirstName,
		customer.LastName,
		customer.IsMember,
		customer.LastEventSeq,
		customer.UpdatedAt,
		customer.ExternalID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, externalID int64) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM customers WHERE external_id = ?`, externalID)
	return result.RowsAffected, result.Error
}

func (r *repo) Truncate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Exec(`DELETE FROM customers`).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if filter.IsMember != nil {
		stmt = stmt.Where("is_member = ?", *filter.IsMember)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("external_id > ?", cursor.ID)
	}
	if page.PageSize > 0 {
		stmt = stmt.Limit(page.PageSize + 1)
	}
	err := stmt.
		Order("external_id asc").
		Find(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}
