package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/denhac/memberbridge/internal/audit/domain"
	"github.com/denhac/memberbridge/internal/clock"
	"github.com/denhac/memberbridge/pkg/db/pagination"
	"github.com/denhac/memberbridge/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultPageSize = 50

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry domain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return domain.ErrInvalidAction
	}

	actorType := strings.TrimSpace(entry.ActorType)
	if actorType == "" {
		actorType = domain.ActorTypeSystem
	}
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	metadata := datatypes.JSONMap{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		metadata[key] = value
	}
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		metadata["correlation_id"] = cid
	}

	return s.repo.Insert(ctx, s.db, &domain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    optional(entry.ActorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   optional(entry.TargetID),
		Metadata:   metadata,
		CreatedAt:  s.clock.Now(),
	})
}

func (s *Service) List(ctx context.Context, req domain.ListAuditLogRequest) (domain.ListAuditLogResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListAuditLogResponse{}, domain.ErrInvalidPageToken
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		BeforeID:   cursor.ID,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, pageSize, func(l *domain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: int64(l.ID)}
	})
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	logs := make([]domain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return domain.ListAuditLogResponse{
		PageInfo:  *pageInfo,
		AuditLogs: logs,
	}, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
