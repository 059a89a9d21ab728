package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	ScopeEventsWrite      = "events:write"
	ScopeParticipantsRead = "participants:read"
	ScopeAPIKeysWrite     = "api_keys:write"
	ScopeProgramsWrite    = "programs:write"
)

// AllScopes lists every scope a key can hold.
func AllScopes() []string {
	return []string{ScopeEventsWrite, ScopeParticipantsRead, ScopeAPIKeysWrite, ScopeProgramsWrite}
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByKeyID(ctx context.Context, db *gorm.DB, productID snowflake.ID, keyID string) (*APIKey, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string, now time.Time) (*APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	List(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]APIKey, error)
}

type Service interface {
	// Authenticate resolves a raw bearer key to its product-scoped record.
	Authenticate(ctx context.Context, rawKey string) (*APIKey, error)
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	Rotate(ctx context.Context, keyID string) (*SecretResponse, error)
	Revoke(ctx context.Context, keyID string) error
	// EnsureKey stores an operator supplied raw key once, for bootstrap.
	EnsureKey(ctx context.Context, productID snowflake.ID, name, rawKey string, scopes []string) (*APIKey, error)
}

type CreateRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type Response struct {
	KeyID            string     `json:"key_id"`
	Name             string     `json:"name"`
	Scopes           []string   `json:"scopes"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       *time.Time `json:"last_used_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	RotatedFromKeyID *string    `json:"rotated_from_key_id"`
}

type SecretResponse struct {
	KeyID  string `json:"key_id"`
	APIKey string `json:"api_key"`
}

var (
	ErrInvalidProduct = errors.New("invalid_product")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidKeyID   = errors.New("invalid_key_id")
	ErrInvalidScope   = errors.New("invalid_scope")
	ErrInvalidKey     = errors.New("invalid_api_key")
	ErrNotFound       = errors.New("api_key_not_found")
)
