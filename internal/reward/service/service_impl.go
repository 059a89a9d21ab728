package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/reward/domain"
	"github.com/smallbiznis/referral/pkg/db/pagination"
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
		log:  p.Log.Named("reward.service"),
		repo: p.Repo,
	}
}

func (s *Service) ListByParticipant(ctx context.Context, productID, participantID snowflake.ID, page pagination.Pagination) ([]*domain.Reward, pagination.PageInfo, error) {
	if participantID == 0 {
		return nil, pagination.PageInfo{}, domain.ErrInvalidParticipant
	}
	rows, err := s.repo.ListByParticipant(ctx, s.db, productID, participantID, page)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	items, info := pagination.Paginate(rows, page.PageSize, func(r *domain.Reward) pagination.Cursor {
		return pagination.Cursor{ID: r.ID.String(), CreatedAt: r.CreatedAt}
	})
	return items, info, nil
}
