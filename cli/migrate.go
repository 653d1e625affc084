package cli

import (
	"fmt"

	"github.com/aethermart/dataplane/engine/infra/postgres"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  handleMigrateCmd,
	}
	cmd.Flags().String("db-conn-string", "", "Database connection string (env: DB_CONN_STRING)")
	return cmd
}

var migrateFlagOverrides = map[string]string{
	"db-conn-string": "DB_CONN_STRING",
}

func handleMigrateCmd(cmd *cobra.Command, _ []string) error {
	ctx, cfg, err := setupCommandEnvironment(cmd, migrateFlagOverrides)
	if err != nil {
		return err
	}
	if err := postgres.ApplyMigrationsWithLock(ctx, postgres.DSN(&cfg.Database)); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	logger.FromContext(ctx).Info("Database migrations applied")
	return nil
}
