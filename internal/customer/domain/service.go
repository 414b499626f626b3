package domain

import (
	"context"
	"errors"

	"github.com/denhac/memberbridge/pkg/db/pagination"
)

type ListCustomerRequest struct {
	PageToken string
	PageSize  int
	IsMember  *bool
	Email     string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	GetByExternalID(ctx context.Context, externalID int64) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
)
