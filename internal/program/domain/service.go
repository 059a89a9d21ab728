package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Program, error)
	Get(ctx context.Context, productID, id snowflake.ID) (*Program, error)
	Active(ctx context.Context, productID snowflake.ID) (*Program, error)
	SetStatus(ctx context.Context, productID, id snowflake.ID, status Status) error
	// WidgetConfig decodes the widget configuration object of a program.
	WidgetConfig(program *Program) (map[string]any, error)
}

type CreateRequest struct {
	ProductID    snowflake.ID   `json:"product_id"`
	Name         string         `json:"name"`
	Status       Status         `json:"status"`
	WidgetConfig map[string]any `json:"widget_config"`
	RewardRules  []RewardRule   `json:"reward_rules"`
}

var (
	ErrInvalidProduct         = errors.New("invalid_product")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrNotFound               = errors.New("program_not_found")
	ErrNoActiveProgram        = errors.New("no_active_program")
	ErrWidgetConfigNotFound   = errors.New("widget_config_not_found")
	ErrInvalidWidgetConfig    = errors.New("invalid_widget_config")
	ErrProgramProductMismatch = errors.New("program_product_mismatch")
)
