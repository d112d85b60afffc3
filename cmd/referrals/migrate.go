package main

import (
	"fmt"

	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/migration"
	"github.com/smallbiznis/referrals/internal/observability"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	"github.com/smallbiznis/referrals/internal/seed"
	"github.com/smallbiznis/referrals/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	var (
		dryRun   bool
		skipSeed bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded SQL migrations to the configured Postgres database
and make sure the bootstrap admin account (ADMIN_EMAIL) exists.

Examples:
  referrals migrate
  referrals migrate --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				files, err := migration.Files()
				if err != nil {
					return err
				}
				for _, name := range files {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cfg := config.Load()
			if cfg.DBType != "postgres" {
				return fmt.Errorf("migrations require postgres, got %q", cfg.DBType)
			}

			log, err := obslogger.New(nil, observability.LoggerConfig(cfg))
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			conn, err := db.New(nil, cfg, log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := migration.RunMigrations(sqlDB); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			version, dirty, err := migration.Version(sqlDB)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))

			if skipSeed || cfg.AdminEmail == "" {
				return nil
			}
			if err := seed.EnsureAdmin(conn, cfg.AdminEmail, cfg.AdminName); err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			log.Info("admin account ensured")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list the embedded migrations without touching the database")
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "do not create the bootstrap admin account")

	return cmd
}
