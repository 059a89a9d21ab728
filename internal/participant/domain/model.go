package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Participant is a person known to one product, keyed by the product's own
// user id. Rows are never deleted and their id never changes.
type Participant struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	ProductID  snowflake.ID `json:"product_id" gorm:"column:product_id;not null;uniqueIndex:ux_participants_product_external,priority:1"`
	ExternalID string       `json:"external_id" gorm:"column:external_id;type:text;not null;uniqueIndex:ux_participants_product_external,priority:2"`
	Email      *string      `json:"email,omitempty" gorm:"type:text"`
	Name       *string      `json:"name,omitempty" gorm:"type:text"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Participant) TableName() string { return "participants" }

func (p *Participant) EmailValue() string {
	if p == nil || p.Email == nil {
		return ""
	}
	return *p.Email
}

func (p *Participant) NameValue() string {
	if p == nil || p.Name == nil {
		return ""
	}
	return *p.Name
}
