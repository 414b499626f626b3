package service

import (
	"context"

	"github.com/denhac/memberbridge/internal/jobs/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxListLimit = 500

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
		log:  p.Log.Named("jobs.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, filter domain.ListJobFilter) ([]domain.Job, error) {
	switch filter.Status {
	case "", domain.StatusPending, domain.StatusRunning, domain.StatusSucceeded, domain.StatusFailed:
	default:
		return nil, domain.ErrInvalidStatus
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.repo.List(ctx, s.db, filter)
}
