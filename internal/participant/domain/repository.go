package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert inserts the participant or refreshes email and name of the
	// existing (product_id, external_id) row in one statement.
	Upsert(ctx context.Context, db *gorm.DB, participant *Participant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Participant, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, productID snowflake.ID, externalID string) (*Participant, error)
	List(ctx context.Context, db *gorm.DB, productID snowflake.ID, page pagination.Pagination) ([]*Participant, error)
}
