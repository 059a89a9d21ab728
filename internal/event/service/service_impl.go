package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/event/domain"
	"github.com/smallbiznis/referral/internal/observability/logger"
	"github.com/smallbiznis/referral/internal/observability/metrics"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/smallbiznis/referral/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           domain.Repository
	ParticipantSvc participantdomain.Service
	ReferralSvc    referraldomain.Service
	ProgramSvc     programdomain.Service
	Metrics        *metrics.Metrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	repo           domain.Repository
	genID          *snowflake.Node
	clock          clock.Clock
	participantSvc participantdomain.Service
	referralSvc    referraldomain.Service
	programSvc     programdomain.Service
	metrics        *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("event.service"),
		repo:           p.Repo,
		genID:          p.GenID,
		clock:          p.Clock,
		participantSvc: p.ParticipantSvc,
		referralSvc:    p.ReferralSvc,
		programSvc:     p.ProgramSvc,
		metrics:        p.Metrics,
	}
}

// attribution is what the transaction decided, carried into the Event row.
type attribution struct {
	participantID snowflake.ID
	referralID    snowflake.ID
	outcome       referraldomain.Outcome
}

func (s *Service) Ingest(ctx context.Context, productID snowflake.ID, cmd *domain.Command) (*domain.IngestResult, error) {
	if cmd == nil || cmd.Payload == nil {
		return nil, domain.NewValidationError("payload", "required", "payload is required")
	}
	if productID == 0 || cmd.ProductID != productID {
		return nil, domain.ErrProductMismatch
	}

	ctx, span := otel.Tracer("referral/event").Start(ctx, "event.ingest")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", string(cmd.EventType)))

	ctx, correlationID := correlation.EnsureCorrelationID(ctx)
	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_type", string(cmd.EventType)),
		zap.String("correlation_id", correlationID),
	)

	programID, err := s.resolveProgram(ctx, productID, cmd.ProgramID)
	if err != nil {
		return nil, err
	}

	var result attribution
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.attribute(ctx, tx, productID, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEventIngested(ctx, productID.String(), string(cmd.EventType))
	if result.outcome != "" {
		s.metrics.RecordAttribution(ctx, "event", string(result.outcome))
	}

	eventID, err := s.writeEvent(ctx, productID, programID, cmd, result, correlationID)
	if err != nil {
		s.metrics.RecordEventWriteFailure(ctx, string(cmd.EventType))
		log.Error("event write failed after commit",
			zap.String("participant_id", result.participantID.String()),
			zap.Error(err),
		)
		return &domain.IngestResult{Success: true}, nil
	}

	return &domain.IngestResult{Success: true, EventID: eventID.String()}, nil
}

func (s *Service) attribute(ctx context.Context, tx *gorm.DB, productID snowflake.ID, cmd *domain.Command) (attribution, error) {
	var result attribution

	upsert := participantdomain.UpsertRequest{
		ProductID:  productID,
		ExternalID: cmd.Payload.ExternalUserID(),
	}
	if signup, ok := cmd.Payload.(domain.SignupPayload); ok {
		upsert.Email = signup.Email
		upsert.Name = signup.Name
	}
	participant, _, err := s.participantSvc.Upsert(ctx, tx, upsert)
	if err != nil {
		return result, err
	}
	result.participantID = participant.ID

	switch payload := cmd.Payload.(type) {
	case domain.SignupPayload:
		if payload.ReferralCode == "" {
			return result, nil
		}
		attr, err := s.referralSvc.AttributeByCode(ctx, tx, referraldomain.AttributeRequest{
			ProductID:         productID,
			Code:              payload.ReferralCode,
			RefereeExternalID: payload.UserID,
			Email:             payload.Email,
			Name:              payload.Name,
		})
		if err != nil {
			return result, err
		}
		result.outcome = attr.Outcome
		if attr.Referral != nil {
			result.referralID = attr.Referral.ID
		}
	case domain.PurchasePayload:
		referral, err := s.referralSvc.FindExistingReferral(ctx, tx, productID, payload.UserID)
		if errors.Is(err, referraldomain.ErrNotFound) {
			return result, nil
		}
		if err != nil {
			return result, err
		}
		result.referralID = referral.ID
	}
	return result, nil
}

// resolveProgram validates an explicit program or falls back to the active one.
func (s *Service) resolveProgram(ctx context.Context, productID, programID snowflake.ID) (snowflake.ID, error) {
	if programID != 0 {
		program, err := s.programSvc.Get(ctx, productID, programID)
		if errors.Is(err, programdomain.ErrNotFound) {
			return 0, domain.NewValidationError("programId", "invalid_program_id", "programId does not belong to the product")
		}
		if err != nil {
			return 0, err
		}
		return program.ID, nil
	}

	program, err := s.programSvc.Active(ctx, productID)
	if errors.Is(err, programdomain.ErrNoActiveProgram) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return program.ID, nil
}

func (s *Service) writeEvent(ctx context.Context, productID, programID snowflake.ID, cmd *domain.Command, result attribution, correlationID string) (snowflake.ID, error) {
	now := s.clock.Now()
	metadata := map[string]any{
		"payload":        json.RawMessage(cmd.RawPayload),
		"timestamp":      cmd.Timestamp.Format(time.RFC3339Nano),
		"correlation_id": correlationID,
	}
	if result.outcome != "" {
		metadata["attribution"] = string(result.outcome)
	}
	metadata = correlation.StampMetadata(ctx, metadata, now)

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return 0, err
	}

	event := &domain.Event{
		ID:            s.genID.Generate(),
		ProductID:     productID,
		ProgramID:     optionalID(programID),
		ParticipantID: optionalID(result.participantID),
		ReferralID:    optionalID(result.referralID),
		EventType:     cmd.EventType,
		Status:        domain.StatusPending,
		Metadata:      datatypes.JSON(encoded),
		CreatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return 0, err
	}
	return event.ID, nil
}

func (s *Service) Get(ctx context.Context, productID, id snowflake.ID) (*domain.Event, error) {
	event, err := s.repo.FindByID(ctx, s.db, productID, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

func (s *Service) ListByParticipant(ctx context.Context, productID, participantID snowflake.ID, page pagination.Pagination) ([]*domain.Event, pagination.PageInfo, error) {
	if participantID == 0 {
		return nil, pagination.PageInfo{}, domain.ErrNotFound
	}
	rows, err := s.repo.ListByParticipant(ctx, s.db, productID, participantID, page)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	items, info := pagination.Paginate(rows, page.PageSize, func(e *domain.Event) pagination.Cursor {
		return pagination.Cursor{ID: e.ID.String(), CreatedAt: e.CreatedAt}
	})
	return items, info, nil
}

func optionalID(id snowflake.ID) *snowflake.ID {
	if id == 0 {
		return nil
	}
	return &id
}
