package service

import (
	"context"

	"github.com/denhac/memberbridge/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
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
		log:  p.Log.Named("subscription.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetByExternalID(ctx context.Context, externalID int64) (domain.Subscription, error) {
	if externalID <= 0 {
		return domain.Subscription{}, domain.ErrInvalidID
	}

	subscription, err := s.repo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return domain.Subscription{}, err
	}
	if subscription == nil {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return *subscription, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerExternalID int64) ([]domain.Subscription, error) {
	if customerExternalID <= 0 {
		return nil, domain.ErrInvalidID
	}

	items, err := s.repo.ListByCustomer(ctx, s.db, customerExternalID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Subscription, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}
