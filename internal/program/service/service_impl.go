package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/program/domain"
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
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("program.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Program, error) {
	if req.ProductID == 0 {
		return nil, domain.ErrInvalidProduct
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	status := req.Status
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	widgetConfig, err := encodeJSON(req.WidgetConfig)
	if err != nil {
		return nil, domain.ErrInvalidWidgetConfig
	}
	rewardRules, err := encodeJSON(req.RewardRules)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	program := &domain.Program{
		ID:           s.genID.Generate(),
		ProductID:    req.ProductID,
		Name:         name,
		Status:       status,
		WidgetConfig: widgetConfig,
		RewardRules:  rewardRules,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, s.db, program); err != nil {
		return nil, err
	}
	return program, nil
}

func (s *Service) Get(ctx context.Context, productID, id snowflake.ID) (*domain.Program, error) {
	if productID == 0 || id == 0 {
		return nil, domain.ErrNotFound
	}
	program, err := s.repo.FindByID(ctx, s.db, productID, id)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, domain.ErrNotFound
	}
	return program, nil
}

func (s *Service) Active(ctx context.Context, productID snowflake.ID) (*domain.Program, error) {
	if productID == 0 {
		return nil, domain.ErrNoActiveProgram
	}
	program, err := s.repo.FindActive(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, domain.ErrNoActiveProgram
	}
	return program, nil
}

func (s *Service) SetStatus(ctx context.Context, productID, id snowflake.ID, status domain.Status) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, s.db, productID, id, status, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("program status changed",
		zap.String("program_id", id.String()),
		zap.String("status", string(status)),
	)
	return nil
}

func (s *Service) WidgetConfig(program *domain.Program) (map[string]any, error) {
	if program == nil || len(program.WidgetConfig) == 0 {
		return nil, domain.ErrWidgetConfigNotFound
	}
	raw := strings.TrimSpace(string(program.WidgetConfig))
	if raw == "" || raw == "null" {
		return nil, domain.ErrWidgetConfigNotFound
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, domain.ErrInvalidWidgetConfig
	}
	if len(cfg) == 0 {
		return nil, domain.ErrWidgetConfigNotFound
	}
	return cfg, nil
}

func encodeJSON(value any) (datatypes.JSON, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if v == nil {
			return nil, nil
		}
	case []domain.RewardRule:
		if v == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
