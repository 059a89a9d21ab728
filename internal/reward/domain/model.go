package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

// Reward rows are written by the downstream rule engine. This service only
// reads them back for display.
type Reward struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	ProductID     snowflake.ID  `json:"product_id" gorm:"column:product_id;not null"`
	ProgramID     snowflake.ID  `json:"program_id" gorm:"column:program_id;not null"`
	ParticipantID snowflake.ID  `json:"participant_id" gorm:"column:participant_id;not null;index:idx_rewards_participant"`
	EventID       *snowflake.ID `json:"event_id,omitempty" gorm:"column:event_id"`
	Type          string        `json:"type" gorm:"type:text;not null"`
	Amount        float64       `json:"amount" gorm:"type:numeric(18,4);not null;default:0"`
	Currency      string        `json:"currency" gorm:"type:text;not null;default:USD"`
	Status        string        `json:"status" gorm:"type:text;not null;default:pending"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Reward) TableName() string { return "rewards" }

type Repository interface {
	ListByParticipant(ctx context.Context, db *gorm.DB, productID, participantID snowflake.ID, page pagination.Pagination) ([]*Reward, error)
}

type Service interface {
	ListByParticipant(ctx context.Context, productID, participantID snowflake.ID, page pagination.Pagination) ([]*Reward, pagination.PageInfo, error)
}

var ErrInvalidParticipant = errors.New("invalid_participant")
