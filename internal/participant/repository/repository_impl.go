package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/participant/domain"
	"github.com/smallbiznis/referral/pkg/db/option"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/smallbiznis/referral/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, participant *domain.Participant) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "external_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "email"}, Value: keepExisting(db, "email")},
			{Column: clause.Column{Name: "name"}, Value: keepExisting(db, "name")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr(excluded(db, "updated_at"))},
		},
	}).Create(participant).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Participant, error) {
	return repository.ProvideStore[domain.Participant](db).FindOne(ctx, &domain.Participant{ID: id})
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, productID snowflake.ID, externalID string) (*domain.Participant, error) {
	var participant domain.Participant
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, external_id, email, name, created_at, updated_at
		 FROM participants WHERE product_id = ? AND external_id = ?`,
		productID,
		externalID,
	).Scan(&participant).Error
	if err != nil {
		return nil, err
	}
	if participant.ID == 0 {
		return nil, nil
	}
	return &participant, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, productID snowflake.ID, page pagination.Pagination) ([]*domain.Participant, error) {
	return repository.ProvideStore[domain.Participant](db).Find(ctx,
		&domain.Participant{ProductID: productID},
		option.ApplyPagination(page),
	)
}

// keepExisting only overwrites a column when the incoming value is non-empty.
func keepExisting(db *gorm.DB, column string) clause.Expr {
	return gorm.Expr(fmt.Sprintf("COALESCE(NULLIF(%s, ''), participants.%s)", excluded(db, column), column))
}

func excluded(db *gorm.DB, column string) string {
	if db.Dialector != nil && db.Dialector.Name() == "mysql" {
		return "VALUES(" + column + ")"
	}
	return "excluded." + column
}
