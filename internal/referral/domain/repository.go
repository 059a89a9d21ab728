package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	FindLinkBySlug(ctx context.Context, db *gorm.DB, slug string) (*ReferralLink, error)
	FindLinkByParticipant(ctx context.Context, db *gorm.DB, participantID snowflake.ID) (*ReferralLink, error)
	SlugExists(ctx context.Context, db *gorm.DB, slug string) (bool, error)
	// CreateLink surfaces unique violations unchanged so callers can retry.
	CreateLink(ctx context.Context, db *gorm.DB, link *ReferralLink) error

	// FindReferrerByCode returns 0 when no link owner matches. A zero
	// productID disables product scoping.
	FindReferrerByCode(ctx context.Context, db *gorm.DB, productID snowflake.ID, slug string) (snowflake.ID, error)
	ParticipantExternalID(ctx context.Context, db *gorm.DB, participantID snowflake.ID) (string, error)

	// FindByExternalID matches the referee external id. A non-zero productID
	// only matches referrals whose referrer belongs to that product.
	FindByExternalID(ctx context.Context, db *gorm.DB, productID snowflake.ID, externalID string) (*Referral, error)
	// InsertIfAbsent reports false when a referral for the external id exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, referral *Referral) (bool, error)
	ListByReferrer(ctx context.Context, db *gorm.DB, referrerID snowflake.ID, page pagination.Pagination) ([]*Referral, error)
}
