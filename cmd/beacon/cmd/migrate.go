package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/beacon/internal/output"
	"github.com/instantcocoa/beacon/migrations"
	"github.com/instantcocoa/beacon/pkg/config"
	"github.com/instantcocoa/beacon/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *database.Migrator) error {
			if err := m.Up(ctx); err != nil {
				return err
			}
			version, err := m.Version(ctx)
			if err != nil {
				return err
			}
			output.Success("schema at version %d", version)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *database.Migrator) error {
			if err := m.Down(ctx); err != nil {
				return err
			}
			version, err := m.Version(ctx)
			if err != nil {
				return err
			}
			output.Success("schema at version %d", version)
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *database.Migrator) error {
			version, err := m.Version(ctx)
			if err != nil {
				return err
			}
			output.Info("schema version %d", version)
			return nil
		})
	},
}

func withMigrator(ctx context.Context, fn func(context.Context, *database.Migrator) error) error {
	cfg, err := config.Load("beacon")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Connect(ctx, database.DefaultConfig(cfg.DatabaseDSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m := database.NewMigrator(db, migrations.Component)
	if err := m.LoadMigrations(migrations.FS, migrations.Dir); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	return fn(ctx, m)
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
