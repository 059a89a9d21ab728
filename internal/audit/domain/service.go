package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	ActionAPIKeyCreate  = "api_key.create"
	ActionAPIKeyRotate  = "api_key.rotate"
	ActionAPIKeyRevoke  = "api_key.revoke"
	ActionProgramStatus = "program.status"

	TargetAPIKey  = "api_key"
	TargetProgram = "program"

	ActorSystem = "system"
)

type Entry struct {
	ProductID  snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Action string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, productID snowflake.ID, action string, page pagination.Pagination) ([]*AuditLog, error)
}

type Service interface {
	// Record appends an entry. The product falls back to the one bound to ctx
	// and the actor is taken from ctx, defaulting to "system".
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, productID snowflake.ID, req ListRequest) ([]*AuditLog, pagination.PageInfo, error)
}

var (
	ErrInvalidProduct = errors.New("invalid_product")
	ErrInvalidAction  = errors.New("invalid_action")
)
