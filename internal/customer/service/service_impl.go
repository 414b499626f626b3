package service

import (
	"context"
	"strings"

	"github.com/denhac/memberbridge/internal/customer/domain"
	"github.com/denhac/memberbridge/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("customer.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByExternalID(ctx context.Context, externalID int64) (domain.Customer, error) {
	if externalID <= 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}

	customer, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	if req.PageToken != "" {
		if _, err := pagination.DecodeCursor(req.PageToken); err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidPageToken
		}
	}

	items, err := s.repo.List(ctx, s.db, domain.ListCustomerFilter{
		IsMember: req.IsMember,
		Email:    strings.TrimSpace(req.Email),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.Customer) pagination.Cursor {
		return pagination.Cursor{ID: c.ExternalID}
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{
		PageInfo:  *pageInfo,
		Customers: customers,
	}, nil
}
