package repository

import (
	"context"

	"github.com/denhac/memberbridge/internal/eventstore/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, evt *domain.StoredEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stored_events (seq, event_type, payload, correlation_id, hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		evt.Seq,
		evt.EventType,
		evt.Payload,
		evt.CorrelationID,
		evt.Hash,
		evt.CreatedAt,
	).Error
}

func (r *repo) LastSeq(ctx context.Context, db *gorm.DB) (uint64, error) {
	var seq uint64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(seq), 0) FROM stored_events`,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *repo) ListAfter(ctx context.Context, db *gorm.DB, afterSeq uint64, limit int) ([]domain.StoredEvent, error) {
	var events []domain.StoredEvent
	stmt := db.WithContext(ctx).
		Model(&domain.StoredEvent{}).
		Where("seq > ?", afterSeq).
		Order("seq asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
