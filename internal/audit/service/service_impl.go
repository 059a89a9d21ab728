package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/clock"
	obscontext "github.com/smallbiznis/referral/internal/observability/context"
	"github.com/smallbiznis/referral/internal/productcontext"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func New(p Params) domain.Service {
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

	productID := entry.ProductID
	if productID == 0 {
		productID, _ = productcontext.ProductIDFromContext(ctx)
	}
	if productID == 0 {
		return domain.ErrInvalidProduct
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := obscontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = domain.ActorSystem
	}

	payload := make(map[string]any, len(entry.Metadata)+1)
	for key, value := range entry.Metadata {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	metadata, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	log := &domain.AuditLog{
		ID:         s.genID.Generate(),
		ProductID:  productID,
		ActorType:  actorType,
		ActorID:    optional(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   optional(entry.TargetID),
		Metadata:   datatypes.JSON(metadata),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, log); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, productID snowflake.ID, req domain.ListRequest) ([]*domain.AuditLog, pagination.PageInfo, error) {
	if productID == 0 {
		return nil, pagination.PageInfo{}, domain.ErrInvalidProduct
	}
	rows, err := s.repo.List(ctx, s.db, productID, req.Action, req.Pagination)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	items, info := pagination.Paginate(rows, req.PageSize, func(l *domain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: l.ID.String(), CreatedAt: l.CreatedAt}
	})
	return items, info, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
