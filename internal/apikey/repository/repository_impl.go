package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).
		Model(&apikeydomain.APIKey{}).
		Where("product_id = ? AND key_id = ?", key.ProductID, key.KeyID).
		Updates(map[string]any{
			"name":                key.Name,
			"scopes":              key.Scopes,
			"is_active":           key.IsActive,
			"updated_at":          key.UpdatedAt,
			"expires_at":          key.ExpiresAt,
			"rotated_from_key_id": key.RotatedFromKeyID,
		}).Error
}

func (r *repo) FindByKeyID(ctx context.Context, db *gorm.DB, productID snowflake.ID, keyID string) (*apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("product_id = ? AND key_id = ?", productID, keyID).
		Limit(1).
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string, now time.Time) (*apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ? AND (expires_at IS NULL OR expires_at > ?)", hash, true, now).
		Limit(1).
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return &keys[0], nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).
		Model(&apikeydomain.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at desc").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
