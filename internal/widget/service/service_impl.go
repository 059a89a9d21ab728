package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/config"
	"github.com/smallbiznis/referral/internal/observability/logger"
	"github.com/smallbiznis/referral/internal/observability/metrics"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/internal/widget/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Cfg            config.Config
	Clock          clock.Clock
	ProductSvc     productdomain.Service
	ProgramSvc     programdomain.Service
	ParticipantSvc participantdomain.Service
	ReferralSvc    referraldomain.Service
	Metrics        *metrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	linkBaseURL    string
	clock          clock.Clock
	productSvc     productdomain.Service
	programSvc     programdomain.Service
	participantSvc participantdomain.Service
	referralSvc    referraldomain.Service
	metrics        *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("widget.service"),
		linkBaseURL:    strings.TrimRight(p.Cfg.LinkBaseURL, "/"),
		clock:          p.Clock,
		productSvc:     p.ProductSvc,
		programSvc:     p.ProgramSvc,
		participantSvc: p.ParticipantSvc,
		referralSvc:    p.ReferralSvc,
		metrics:        p.Metrics,
	}
}

func (s *Service) Init(ctx context.Context, token string, req domain.InitRequest) (map[string]any, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrMissingToken
	}
	bodyProductID := strings.TrimSpace(req.ProductID)
	if bodyProductID == "" {
		return nil, domain.ErrInvalidProductID
	}

	tokenProductID, err := peekProductID(token)
	if err != nil {
		return nil, err
	}
	if tokenProductID != bodyProductID {
		return nil, domain.ErrProductMismatch
	}
	productID, err := snowflake.ParseString(bodyProductID)
	if err != nil || productID <= 0 {
		return nil, domain.ErrProductMismatch
	}

	product, err := s.productSvc.Get(ctx, productID)
	if errors.Is(err, productdomain.ErrNotFound) {
		return nil, domain.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	claims, err := verifyToken(token, product.WidgetSecret, s.clock.Now)
	if err != nil {
		return nil, err
	}

	program, err := s.programSvc.Active(ctx, productID)
	if err != nil {
		return nil, err
	}

	participant, created, err := s.participantSvc.Upsert(ctx, nil, participantdomain.UpsertRequest{
		ProductID:  productID,
		ExternalID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordWidgetSession(ctx, productID.String(), created)

	log := logger.WithContext(ctx, s.log).With(zap.String("participant_id", participant.ID.String()))

	if code := strings.TrimSpace(req.ReferralCode); code != "" && created {
		s.autoAttribute(ctx, log, productID, participant, code)
	}

	link, err := s.referralSvc.EnsureLink(ctx, participant.ID)
	if err != nil {
		return nil, err
	}

	widgetConfig, err := s.programSvc.WidgetConfig(program)
	if err != nil {
		return nil, err
	}
	widgetConfig["referralLink"] = s.linkBaseURL + "/r/" + link.Slug
	return widgetConfig, nil
}

// autoAttribute runs once per participant lifetime, guarded by the upsert
// having created the row. Failures never fail the session.
func (s *Service) autoAttribute(ctx context.Context, log *zap.Logger, productID snowflake.ID, participant *participantdomain.Participant, code string) {
	var outcome referraldomain.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attr, err := s.referralSvc.AttributeByCode(ctx, tx, referraldomain.AttributeRequest{
			ProductID:         productID,
			Code:              code,
			RefereeExternalID: participant.ExternalID,
			Email:             participant.EmailValue(),
			Name:              participant.NameValue(),
		})
		if err != nil {
			return err
		}
		outcome = attr.Outcome
		return nil
	})
	if err != nil {
		log.Warn("widget auto attribution failed", zap.Error(err))
		s.metrics.RecordAttribution(ctx, "widget", "error")
		return
	}
	s.metrics.RecordAttribution(ctx, "widget", string(outcome))
}
