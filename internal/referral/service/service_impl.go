package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/code"
	"github.com/smallbiznis/referral/internal/config"
	"github.com/smallbiznis/referral/internal/observability/logger"
	"github.com/smallbiznis/referral/internal/observability/metrics"
	"github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/pkg/db"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Config  *config.ReferralConfigHolder `optional:"true"`
	Metrics *metrics.Metrics             `optional:"true"`
	// Generator overrides the code generator built from referral.yml.
	Generator *code.Generator `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	genID     *snowflake.Node
	clock     clock.Clock
	config    *config.ReferralConfigHolder
	metrics   *metrics.Metrics
	generator *code.Generator
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("referral.service"),
		repo:      p.Repo,
		genID:     p.GenID,
		clock:     p.Clock,
		config:    p.Config,
		metrics:   p.Metrics,
		generator: p.Generator,
	}
}

func (s *Service) FindReferrerByCode(ctx context.Context, tx *gorm.DB, productID snowflake.ID, rawCode string) (snowflake.ID, error) {
	slug := code.NormalizeCode(rawCode)
	if slug == "" {
		return 0, domain.ErrCodeNotFound
	}
	if !s.config.Get().ScopeCodesToProduct {
		productID = 0
	}

	referrerID, err := s.repo.FindReferrerByCode(ctx, s.conn(tx), productID, slug)
	if err != nil {
		return 0, err
	}
	if referrerID == 0 {
		return 0, domain.ErrCodeNotFound
	}
	return referrerID, nil
}

// FindExistingReferral looks up referrals by referee external id only. Codes
// and external ids live in separate namespaces. Referrals made by another
// product's participants are not visible.
func (s *Service) FindExistingReferral(ctx context.Context, tx *gorm.DB, productID snowflake.ID, refereeExternalID string) (*domain.Referral, error) {
	externalID := strings.TrimSpace(refereeExternalID)
	if externalID == "" || productID == 0 {
		return nil, domain.ErrNotFound
	}
	referral, err := s.repo.FindByExternalID(ctx, s.conn(tx), productID, externalID)
	if err != nil {
		return nil, err
	}
	if referral == nil {
		return nil, domain.ErrNotFound
	}
	return referral, nil
}

// CreateReferral inserts at most one referral per referee. A concurrent or
// repeated signup returns the existing row with created=false.
func (s *Service) CreateReferral(ctx context.Context, tx *gorm.DB, req domain.CreateReferralRequest) (*domain.Referral, bool, error) {
	if req.ReferrerID == 0 {
		return nil, false, domain.ErrInvalidReferrer
	}
	externalID := strings.TrimSpace(req.RefereeExternalID)
	if externalID == "" {
		return nil, false, domain.ErrInvalidExternalID
	}
	conn := s.conn(tx)

	referrerExternalID, err := s.repo.ParticipantExternalID(ctx, conn, req.ReferrerID)
	if err != nil {
		return nil, false, err
	}
	if referrerExternalID == "" {
		return nil, false, domain.ErrInvalidReferrer
	}
	if referrerExternalID == externalID {
		return nil, false, domain.ErrSelfReferral
	}

	candidate := &domain.Referral{
		ID:         s.genID.Generate(),
		ReferrerID: req.ReferrerID,
		ExternalID: externalID,
		Email:      optional(req.Email),
		Name:       optional(req.Name),
		CreatedAt:  s.clock.Now(),
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, conn, candidate)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return candidate, true, nil
	}

	existing, err := s.repo.FindByExternalID(ctx, conn, 0, externalID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, domain.ErrNotFound
	}
	return existing, false, nil
}

func (s *Service) AttributeByCode(ctx context.Context, tx *gorm.DB, req domain.AttributeRequest) (*domain.Attribution, error) {
	log := logger.WithContext(ctx, s.log)

	referrerID, err := s.FindReferrerByCode(ctx, tx, req.ProductID, req.Code)
	if errors.Is(err, domain.ErrCodeNotFound) {
		log.Info("referral code did not resolve",
			zap.String("referral_code", code.NormalizeCode(req.Code)),
		)
		return &domain.Attribution{Outcome: domain.OutcomeUnresolved}, nil
	}
	if err != nil {
		return nil, err
	}

	referral, created, err := s.CreateReferral(ctx, tx, domain.CreateReferralRequest{
		ReferrerID:        referrerID,
		RefereeExternalID: req.RefereeExternalID,
		Email:             req.Email,
		Name:              req.Name,
	})
	if errors.Is(err, domain.ErrSelfReferral) {
		log.Info("self referral skipped", zap.String("referrer_id", referrerID.String()))
		return &domain.Attribution{Outcome: domain.OutcomeSelf}, nil
	}
	if err != nil {
		return nil, err
	}

	outcome := domain.OutcomeExisting
	if created {
		outcome = domain.OutcomeCreated
		log.Info("referral attributed",
			zap.String("referral_id", referral.ID.String()),
			zap.String("referrer_id", referrerID.String()),
		)
	}
	return &domain.Attribution{Outcome: outcome, Referral: referral}, nil
}

func (s *Service) FindLinkBySlug(ctx context.Context, rawCode string) (*domain.ReferralLink, error) {
	slug := code.NormalizeCode(rawCode)
	if slug == "" {
		return nil, domain.ErrLinkNotFound
	}
	link, err := s.repo.FindLinkBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrLinkNotFound
	}
	return link, nil
}

func (s *Service) FindLinkByParticipant(ctx context.Context, participantID snowflake.ID) (*domain.ReferralLink, error) {
	link, err := s.repo.FindLinkByParticipant(ctx, s.db, participantID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrLinkNotFound
	}
	return link, nil
}

// EnsureLink returns the participant's link, allocating one on first use.
// Slug collisions are retried with jittered exponential backoff up to the
// configured attempt budget.
func (s *Service) EnsureLink(ctx context.Context, participantID snowflake.ID) (*domain.ReferralLink, error) {
	if participantID == 0 {
		return nil, domain.ErrInvalidReferrer
	}

	cfg := s.config.Get()
	generator := s.generator
	if generator == nil {
		generator = code.NewGenerator(nil, code.NewFilter(cfg.BlockedWords))
	}
	log := logger.WithContext(ctx, s.log)

	var link *domain.ReferralLink
	attempt := 0
	operation := func() error {
		attempt++
		existing, err := s.repo.FindLinkByParticipant(ctx, s.db, participantID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if existing != nil {
			link = existing
			return nil
		}

		slug, err := generator.GenerateUnique(ctx, cfg.CodeAttempts, func(ctx context.Context, candidate string) (bool, error) {
			return s.repo.SlugExists(ctx, s.db, candidate)
		})
		if err != nil {
			return backoff.Permanent(err)
		}

		candidate := &domain.ReferralLink{
			ID:            s.genID.Generate(),
			ParticipantID: participantID,
			Slug:          slug,
			CreatedAt:     s.clock.Now(),
		}
		if err := s.repo.CreateLink(ctx, s.db, candidate); err != nil {
			if db.IsDuplicateKeyErr(err) {
				log.Debug("referral link insert collided",
					zap.String("participant_id", participantID.String()),
					zap.Int("attempt", attempt),
				)
				return domain.ErrSlugTaken
			}
			return backoff.Permanent(err)
		}
		link = candidate
		s.metrics.RecordLinkAllocation(ctx, "created")
		return nil
	}

	err := backoff.Retry(operation, s.retryPolicy(ctx, cfg))
	switch {
	case err == nil:
		return link, nil
	case errors.Is(err, domain.ErrSlugTaken), errors.Is(err, code.ErrExhausted):
		s.metrics.RecordLinkAllocation(ctx, "exhausted")
		log.Warn("referral link allocation exhausted",
			zap.String("participant_id", participantID.String()),
			zap.Int("attempts", attempt),
		)
		return nil, domain.ErrLinkAllocationExhausted
	default:
		return nil, err
	}
}

func (s *Service) ListByReferrer(ctx context.Context, referrerID snowflake.ID, page pagination.Pagination) ([]*domain.Referral, pagination.PageInfo, error) {
	rows, err := s.repo.ListByReferrer(ctx, s.db, referrerID, page)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	items, info := pagination.Paginate(rows, page.PageSize, func(r *domain.Referral) pagination.Cursor {
		return pagination.Cursor{ID: r.ID.String(), CreatedAt: r.CreatedAt}
	})
	return items, info, nil
}

func (s *Service) retryPolicy(ctx context.Context, cfg config.ReferralConfig) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BackoffInitial
	exp.MaxInterval = cfg.BackoffMax
	exp.RandomizationFactor = 0.5
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := cfg.LinkAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func (s *Service) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
