package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Create or update the database schema.

Safe to run repeatedly. serve also migrates on startup; this command is for
preparing a database ahead of a deploy.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	slog.Info("starting database migration", "database", cfg.Database.Path)

	// sqlite.New migrates on open; run it again explicitly so a failure is
	// reported by this command rather than swallowed.
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed", "database", cfg.Database.Path)
	return nil
}
