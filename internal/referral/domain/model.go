package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReferralLink is the shareable code of one participant.
type ReferralLink struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ParticipantID snowflake.ID `json:"participant_id" gorm:"column:participant_id;not null;uniqueIndex:ux_referral_links_participant"`
	Slug          string       `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_referral_links_slug"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ReferralLink) TableName() string { return "referral_links" }

// Referral attributes a referee, identified by external id, to the referrer.
type Referral struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	ReferrerID snowflake.ID `json:"referrer_id" gorm:"column:referrer_id;not null;index:idx_referrals_referrer"`
	ExternalID string       `json:"external_id" gorm:"column:external_id;type:text;not null;uniqueIndex:ux_referrals_external"`
	Email      *string      `json:"email,omitempty" gorm:"type:text"`
	Name       *string      `json:"name,omitempty" gorm:"type:text"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Referral) TableName() string { return "referrals" }
