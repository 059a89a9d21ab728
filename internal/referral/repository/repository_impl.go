package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/referral/domain"
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

func (r *repo) FindLinkBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ReferralLink, error) {
	var link domain.ReferralLink
	err := db.WithContext(ctx).Raw(
		`SELECT id, participant_id, slug, created_at FROM referral_links WHERE slug = ?`,
		slug,
	).Scan(&link).Error
	if err != nil {
		return nil, err
	}
	if link.ID == 0 {
		return nil, nil
	}
	return &link, nil
}

func (r *repo) FindLinkByParticipant(ctx context.Context, db *gorm.DB, participantID snowflake.ID) (*domain.ReferralLink, error) {
	var link domain.ReferralLink
	err := db.WithContext(ctx).Raw(
		`SELECT id, participant_id, slug, created_at FROM referral_links WHERE participant_id = ?`,
		participantID,
	).Scan(&link).Error
	if err != nil {
		return nil, err
	}
	if link.ID == 0 {
		return nil, nil
	}
	return &link, nil
}

func (r *repo) SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error) {
	count, err := repository.ProvideStore[domain.ReferralLink](db).Count(ctx, &domain.ReferralLink{Slug: slug})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) CreateLink(ctx context.Context, db *gorm.DB, link *domain.ReferralLink) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referral_links (id, participant_id, slug, created_at) VALUES (?, ?, ?, ?)`,
		link.ID,
		link.ParticipantID,
		link.Slug,
		link.CreatedAt,
	).Error
}

func (r *repo) FindReferrerByCode(ctx context.Context, db *gorm.DB, productID snowflake.ID, slug string) (snowflake.ID, error) {
	stmt := db.WithContext(ctx).
		Table("referral_links AS l").
		Joins("JOIN participants AS p ON p.id = l.participant_id").
		Where("l.slug = ?", slug)
	if productID != 0 {
		stmt = stmt.Where("p.product_id = ?", productID)
	}

	var ids []int64
	if err := stmt.Limit(1).Pluck("p.id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return snowflake.ID(ids[0]), nil
}

func (r *repo) ParticipantExternalID(ctx context.Context, db *gorm.DB, participantID snowflake.ID) (string, error) {
	var externalIDs []string
	err := db.WithContext(ctx).
		Table("participants").
		Where("id = ?", participantID).
		Limit(1).
		Pluck("external_id", &externalIDs).Error
	if err != nil {
		return "", err
	}
	if len(externalIDs) == 0 {
		return "", nil
	}
	return externalIDs[0], nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, productID snowflake.ID, externalID string) (*domain.Referral, error) {
	stmt := db.WithContext(ctx).
		Table("referrals AS r").
		Select("r.id, r.referrer_id, r.external_id, r.email, r.name, r.created_at").
		Where("r.external_id = ?", externalID)
	if productID != 0 {
		stmt = stmt.
			Joins("JOIN participants AS p ON p.id = r.referrer_id").
			Where("p.product_id = ?", productID)
	}

	var referral domain.Referral
	if err := stmt.Limit(1).Scan(&referral).Error; err != nil {
		return nil, err
	}
	if referral.ID == 0 {
		return nil, nil
	}
	return &referral, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, referral *domain.Referral) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).
		Create(referral)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, page pagination.Pagination) ([]*domain.Referral, error) {
	return repository.ProvideStore[domain.Referral](db).Find(ctx,
		&domain.Referral{ReferrerID: referrerID},
		option.ApplyPagination(page),
	)
}
