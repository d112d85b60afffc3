package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/clock"
	"github.com/smallbiznis/referrals/internal/config"
	"github.com/smallbiznis/referrals/internal/migration"
	"github.com/smallbiznis/referrals/internal/observability"
	"github.com/smallbiznis/referrals/internal/scheduler"
	"github.com/smallbiznis/referrals/internal/server"
	"github.com/smallbiznis/referrals/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var nodeID int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and reporting HTTP server",
		Long: `Run the HTTP server.

Configuration is read from the environment (and a .env file when present).
Pending migrations are applied on start unless AUTO_MIGRATE=false.

Examples:
  referrals serve
  referrals serve --node 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(func() (*snowflake.Node, error) {
					return snowflake.NewNode(nodeID)
				}),
				db.Module,
				clock.Module,
				migration.Module,
				server.Module,
				scheduler.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().Int64Var(&nodeID, "node", 1, "snowflake node id for this instance (0-1023)")

	return cmd
}
