package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eventpass/internal/platform/config"
	"eventpass/internal/platform/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			switch cfg.Store {
			case config.StoreSQLite:
				db, err := database.OpenSQLite(ctx, database.SQLiteDSN(cfg.SQLitePath))
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.MigrateSQLite(db); err != nil {
					return err
				}
			case config.StorePostgres:
				db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.MigratePostgres(db); err != nil {
					return err
				}
			default:
				return fmt.Errorf("store %q has no schema to migrate", cfg.Store)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Store)
			return nil
		},
	}
}
