package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/product/domain"
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
		log:   p.Log.Named("product.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	secret := strings.TrimSpace(req.WidgetSecret)
	if secret == "" {
		return nil, domain.ErrInvalidWidgetSecret
	}

	var redirect *string
	if req.RedirectURL != nil && strings.TrimSpace(*req.RedirectURL) != "" {
		value := strings.TrimSpace(*req.RedirectURL)
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, domain.ErrInvalidRedirectURL
		}
		redirect = &value
	}

	now := s.clock.Now()
	product := &domain.Product{
		ID:           s.genID.Generate(),
		Name:         name,
		RedirectURL:  redirect,
		WidgetSecret: secret,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, s.db, product); err != nil {
		return nil, err
	}

	s.log.Info("product created", zap.String("product_id", product.ID.String()))
	return product, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	product, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (s *Service) RedirectURL(ctx context.Context, id snowflake.ID) (string, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if product.RedirectURL == nil || strings.TrimSpace(*product.RedirectURL) == "" {
		return "", domain.ErrRedirectNotConfigured
	}
	return strings.TrimSpace(*product.RedirectURL), nil
}
