package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zapScope/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Postgres tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cfg.PGDSN == "" {
				return fmt.Errorf("pg dsn is required")
			}
			store, err := postgres.NewStore(cmd.Context(), cfg.PGDSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
