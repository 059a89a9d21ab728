package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/pkg/db/option"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/smallbiznis/referral/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return repository.ProvideStore[domain.AuditLog](db).Create(ctx, entry)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, productID snowflake.ID, action string, page pagination.Pagination) ([]*domain.AuditLog, error) {
	return repository.ProvideStore[domain.AuditLog](db).Find(ctx,
		&domain.AuditLog{ProductID: productID, Action: strings.TrimSpace(action)},
		option.ApplyPagination(page),
	)
}
