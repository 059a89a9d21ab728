package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	// Upsert runs on tx when given so callers can share their transaction.
	Upsert(ctx context.Context, tx *gorm.DB, req UpsertRequest) (*Participant, bool, error)
	Get(ctx context.Context, productID, id snowflake.ID) (*Participant, error)
	FindByExternalID(ctx context.Context, tx *gorm.DB, productID snowflake.ID, externalID string) (*Participant, error)
	List(ctx context.Context, productID snowflake.ID, page pagination.Pagination) ([]*Participant, pagination.PageInfo, error)
}

type UpsertRequest struct {
	ProductID  snowflake.ID
	ExternalID string
	Email      string
	Name       string
}

var (
	ErrInvalidProduct    = errors.New("invalid_product")
	ErrInvalidExternalID = errors.New("invalid_external_id")
	ErrNotFound          = errors.New("participant_not_found")
)
