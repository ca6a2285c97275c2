package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	pg "subscription-api/internal/infra/db/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateSubCmd(opts, "up", "Apply all pending migrations", func(ctx context.Context, m *pg.Migrator, _ *cobra.Command) error {
			return m.Up(ctx)
		}),
		migrateSubCmd(opts, "down", "Roll back the most recent migration", func(ctx context.Context, m *pg.Migrator, _ *cobra.Command) error {
			return m.Down(ctx)
		}),
		migrateSubCmd(opts, "status", "Show migration status", func(ctx context.Context, m *pg.Migrator, cmd *cobra.Command) error {
			if err := m.Status(ctx); err != nil {
				return err
			}
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
			return err
		}),
	)
	return cmd
}

func migrateSubCmd(opts *rootOptions, use, short string, run func(context.Context, *pg.Migrator, *cobra.Command) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := pg.NewPgxPool(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer pool.Close()
			return run(ctx, pg.NewMigrator(pool, cfg.Database.MigrationsTable, logger), cmd)
		},
	}
}
