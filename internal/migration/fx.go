package migration

import (
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.AutoMigrate {
			return nil
		}
		if cfg.DBType != "postgres" {
			log.Warn("auto migration skipped for non-postgres database", zap.String("db_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.AdminEmail != "" {
			return seed.EnsureAdmin(conn, cfg.AdminEmail, cfg.AdminName)
		}
		return nil
	}),
)
