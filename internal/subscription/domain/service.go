package domain

import (
	"context"
	"errors"
)

type Service interface {
	GetByExternalID(ctx context.Context, externalID int64) (Subscription, error)
	ListByCustomer(ctx context.Context, customerExternalID int64) ([]Subscription, error)
}

var (
	ErrInvalidID = errors.New("invalid_id")
	ErrNotFound  = errors.New("not_found")
)
