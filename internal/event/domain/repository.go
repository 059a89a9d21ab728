package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	FindByID(ctx context.Context, db *gorm.DB, productID, id snowflake.ID) (*Event, error)
	ListByParticipant(ctx context.Context, db *gorm.DB, productID, participantID snowflake.ID, page pagination.Pagination) ([]*Event, error)
}
