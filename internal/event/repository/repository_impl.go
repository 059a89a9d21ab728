package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/event/domain"
	"github.com/smallbiznis/referral/pkg/db/option"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/smallbiznis/referral/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO events (id, product_id, program_id, participant_id, referral_id, event_type, status, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.ProductID,
		event.ProgramID,
		event.ParticipantID,
		event.ReferralID,
		event.EventType,
		event.Status,
		event.Metadata,
		event.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, productID, id snowflake.ID) (*domain.Event, error) {
	return repository.ProvideStore[domain.Event](db).FindOne(ctx, &domain.Event{ID: id, ProductID: productID})
}

func (r *repo) ListByParticipant(ctx context.Context, db *gorm.DB, productID, participantID snowflake.ID, page pagination.Pagination) ([]*domain.Event, error) {
	return repository.ProvideStore[domain.Event](db).Find(ctx,
		&domain.Event{ProductID: productID, ParticipantID: &participantID},
		option.ApplyPagination(page),
	)
}
