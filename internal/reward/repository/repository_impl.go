package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/reward/domain"
	"github.com/smallbiznis/referral/pkg/db/option"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/smallbiznis/referral/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListByParticipant(ctx context.Context, db *gorm.DB, productID, participantID snowflake.ID, page pagination.Pagination) ([]*domain.Reward, error) {
	return repository.ProvideStore[domain.Reward](db).Find(ctx,
		&domain.Reward{ProductID: productID, ParticipantID: participantID},
		option.ApplyPagination(page),
	)
}
