package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeSignup   Type = "signup"
	TypePurchase Type = "purchase"
)

const StatusPending = "pending"

// Event is the append-only record consumed by the downstream reward rule
// engine. It is written after the attribution transaction commits.
type Event struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProductID     snowflake.ID   `json:"product_id" gorm:"column:product_id;not null;index:idx_events_product_status,priority:1"`
	ProgramID     *snowflake.ID  `json:"program_id,omitempty" gorm:"column:program_id"`
	ParticipantID *snowflake.ID  `json:"participant_id,omitempty" gorm:"column:participant_id"`
	ReferralID    *snowflake.ID  `json:"referral_id,omitempty" gorm:"column:referral_id"`
	EventType     Type           `json:"event_type" gorm:"column:event_type;type:text;not null"`
	Status        string         `json:"status" gorm:"type:text;not null;default:pending;index:idx_events_product_status,priority:2"`
	Metadata      datatypes.JSON `json:"metadata" gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Event) TableName() string { return "events" }
