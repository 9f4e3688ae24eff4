package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pg "gym-membership/internal/infra/db/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back or inspect the embedded SQL migrations.`,
	}
	cmd.AddCommand(
		migrateSubcommand("up", "Run all pending migrations", pg.MigrateUp),
		migrateSubcommand("down", "Roll back the latest migration", pg.MigrateDown),
		migrateSubcommand("status", "Show migration status", pg.MigrateStatus),
	)
	return cmd
}

func migrateSubcommand(use, short string, dir pg.MigrateDirection) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadEnv()
			if err != nil {
				return err
			}
			pool, err := pg.Connect(ctx, &cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(ctx, pool, cfg.Database.MigrationsTable, dir, logger); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			logger.Info().Str("direction", use).Msg("migration finished")
			return nil
		},
	}
}
