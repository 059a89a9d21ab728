package migration

import (
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	eventdomain "github.com/smallbiznis/referral/internal/event/domain"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	rewarddomain "github.com/smallbiznis/referral/internal/reward/domain"
	"gorm.io/gorm"
)

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&productdomain.Product{},
		&programdomain.Program{},
		&participantdomain.Participant{},
		&referraldomain.ReferralLink{},
		&referraldomain.Referral{},
		&eventdomain.Event{},
		&rewarddomain.Reward{},
		&apikeydomain.APIKey{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate derives the schema from the gorm models. It backs mysql and
// sqlite deployments, where the embedded SQL files do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
