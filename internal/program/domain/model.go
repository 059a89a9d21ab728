package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}

// Program is the referral programme configuration of one product. Reward
// rules are stored for the downstream rule engine and never evaluated here.
type Program struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProductID    snowflake.ID   `json:"product_id" gorm:"column:product_id;not null;index:idx_programs_product_status,priority:1"`
	Name         string         `json:"name" gorm:"type:text;not null"`
	Status       Status         `json:"status" gorm:"type:text;not null;default:active;index:idx_programs_product_status,priority:2"`
	WidgetConfig datatypes.JSON `json:"widget_config,omitempty" gorm:"column:widget_config;type:jsonb"`
	RewardRules  datatypes.JSON `json:"reward_rules,omitempty" gorm:"column:reward_rules;type:jsonb"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Program) TableName() string { return "programs" }

// RewardRule mirrors one entry of Program.RewardRules.
type RewardRule struct {
	Trigger struct {
		Event string `json:"event"`
	} `json:"trigger"`
	ParticipantType string         `json:"participantType"`
	Reward          map[string]any `json:"reward"`
}
