package repository

import (
	"context"

	"github.com/denhac/memberbridge/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalID int64) (*domain.Subscription, error) {
	var subscription domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT external_id, customer_external_id, status, last_event_seq, created_at, updated_at
		 FROM subscriptions WHERE external_id = ?`,
		externalID,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ExternalID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (external_id, customer_external_id, status, last_event_seq, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		subscription.ExternalID,
		subscription.CustomerExternalID,
		subscription.Status,
		subscription.LastEventSeq,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET customer_external_id = ?, status = ?, last_event_seq = ?, updated_at = ?
		 WHERE external_id = ?`,
		subscription.CustomerExternalID,
		subscription.Status,
		subscription.LastEventSeq,
		subscription.UpdatedAt,
		subscription.ExternalID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, externalID int64) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM subscriptions WHERE external_id = ?`, externalID)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteByCustomer(ctx context.Context, db *gorm.DB, customerExternalID int64) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM subscriptions WHERE customer_external_id = ?`, customerExternalID)
	return result.RowsAffected, result.Error
}

func (r *repo) ListByCustomer(ctx context.Context, db *gorm.DB, customerExternalID int64) ([]*domain.Subscription, error) {
	var subscriptions []*domain.Subscription
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("customer_external_id = ?", customerExternalID).
		Order("external_id asc").
		Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) Truncate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Exec(`DELETE FROM subscriptions`).Error
}
