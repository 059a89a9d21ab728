package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, program *Program) error
	FindByID(ctx context.Context, db *gorm.DB, productID, id snowflake.ID) (*Program, error)
	// FindActive returns the newest active program of the product, or nil.
	FindActive(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*Program, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, productID, id snowflake.ID, status Status, at time.Time) error
}
