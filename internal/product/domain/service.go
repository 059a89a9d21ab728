package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Get(ctx context.Context, id snowflake.ID) (*Product, error)
	// RedirectURL returns ErrRedirectNotConfigured when the product has no URL.
	RedirectURL(ctx context.Context, id snowflake.ID) (string, error)
}

type CreateRequest struct {
	Name         string  `json:"name"`
	RedirectURL  *string `json:"redirect_url"`
	WidgetSecret string  `json:"widget_secret"`
}

var (
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidRedirectURL    = errors.New("invalid_redirect_url")
	ErrInvalidWidgetSecret   = errors.New("invalid_widget_secret")
	ErrNotFound              = errors.New("product_not_found")
	ErrRedirectNotConfigured = errors.New("redirect_not_configured")
)
