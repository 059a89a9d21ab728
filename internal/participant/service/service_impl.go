package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/participant/domain"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("participant.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Upsert(ctx context.Context, tx *gorm.DB, req domain.UpsertRequest) (*domain.Participant, bool, error) {
	if req.ProductID == 0 {
		return nil, false, domain.ErrInvalidProduct
	}
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return nil, false, domain.ErrInvalidExternalID
	}
	if tx == nil {
		tx = s.db
	}

	now := s.clock.Now()
	// The insert may write the existing row's id back into candidate.
	candidateID := s.genID.Generate()
	candidate := &domain.Participant{
		ID:         candidateID,
		ProductID:  req.ProductID,
		ExternalID: externalID,
		Email:      optional(req.Email),
		Name:       optional(req.Name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, tx, candidate); err != nil {
		return nil, false, err
	}

	stored, err := s.repo.FindByExternalID(ctx, tx, req.ProductID, externalID)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, domain.ErrNotFound
	}

	created := stored.ID == candidateID
	if created {
		s.log.Debug("participant created",
			zap.String("participant_id", stored.ID.String()),
			zap.String("product_id", req.ProductID.String()),
		)
	}
	return stored, created, nil
}

func (s *Service) Get(ctx context.Context, productID, id snowflake.ID) (*domain.Participant, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	participant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if participant == nil || (productID != 0 && participant.ProductID != productID) {
		return nil, domain.ErrNotFound
	}
	return participant, nil
}

func (s *Service) FindByExternalID(ctx context.Context, tx *gorm.DB, productID snowflake.ID, externalID string) (*domain.Participant, error) {
	if tx == nil {
		tx = s.db
	}
	participant, err := s.repo.FindByExternalID(ctx, tx, productID, strings.TrimSpace(externalID))
	if err != nil {
		return nil, err
	}
	if participant == nil {
		return nil, domain.ErrNotFound
	}
	return participant, nil
}

func (s *Service) List(ctx context.Context, productID snowflake.ID, page pagination.Pagination) ([]*domain.Participant, pagination.PageInfo, error) {
	if productID == 0 {
		return nil, pagination.PageInfo{}, domain.ErrInvalidProduct
	}
	rows, err := s.repo.List(ctx, s.db, productID, page)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	items, info := pagination.Paginate(rows, page.PageSize, func(p *domain.Participant) pagination.Cursor {
		return pagination.Cursor{ID: p.ID.String(), CreatedAt: p.CreatedAt}
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
