package migration

import (
	"github.com/smallbiznis/referral/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.RunMigrations {
			log.Info("migrations disabled")
			return nil
		}
		log.Info("migrating schema", zap.String("type", cfg.DBType))
		return Run(conn, cfg.DBType)
	}),
)
