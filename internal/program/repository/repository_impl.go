package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/program/domain"
	"github.com/smallbiznis/referral/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, program *domain.Program) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO programs (id, product_id, name, status, widget_config, reward_rules, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		program.ID,
		program.ProductID,
		program.Name,
		program.Status,
		program.WidgetConfig,
		program.RewardRules,
		program.CreatedAt,
		program.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, productID, id snowflake.ID) (*domain.Program, error) {
	return repository.ProvideStore[domain.Program](db).FindOne(ctx, &domain.Program{ID: id, ProductID: productID})
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*domain.Program, error) {
	var program domain.Program
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, name, status, widget_config, reward_rules, created_at, updated_at
		 FROM programs
		 WHERE product_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		productID,
		domain.StatusActive,
	).Scan(&program).Error
	if err != nil {
		return nil, err
	}
	if program.ID == 0 {
		return nil, nil
	}
	return &program, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, productID, id snowflake.ID, status domain.Status, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE programs SET status = ?, updated_at = ? WHERE product_id = ? AND id = ?`,
		status,
		at,
		productID,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
