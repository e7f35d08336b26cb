package cmd

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), goose.UpContext)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), goose.DownContext)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of every migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd.Context(), goose.StatusContext)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

type migrationFunc func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error

func withMigrator(ctx context.Context, run migrationFunc) error {
	cfg := loadConfig()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := newMigrator(); err != nil {
		return err
	}
	return run(ctx, db, ".")
}
