package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a tenant application that reports events and hosts the widget.
type Product struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	RedirectURL  *string      `json:"redirect_url,omitempty" gorm:"column:redirect_url;type:text"`
	WidgetSecret string       `json:"-" gorm:"column:widget_secret;type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
