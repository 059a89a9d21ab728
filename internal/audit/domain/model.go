package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records a credential or configuration change made against a
// product. Rows are append only.
type AuditLog struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProductID  snowflake.ID   `json:"product_id" gorm:"column:product_id;not null;index:idx_audit_logs_product_created,priority:1"`
	ActorType  string         `json:"actor_type" gorm:"column:actor_type;type:text;not null"`
	ActorID    *string        `json:"actor_id,omitempty" gorm:"column:actor_id;type:text"`
	Action     string         `json:"action" gorm:"type:text;not null"`
	TargetType string         `json:"target_type" gorm:"column:target_type;type:text;not null"`
	TargetID   *string        `json:"target_id,omitempty" gorm:"column:target_id;type:text"`
	Metadata   datatypes.JSON `json:"metadata" gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_audit_logs_product_created,priority:2"`
}

func (AuditLog) TableName() string { return "audit_logs" }
