package main

import (
	"database/sql"
	"fmt"
	"os"

	"tshe-crm/migrations"
	"tshe-crm/pkg/config"
	"tshe-crm/pkg/database"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var migrationsDir string

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the CRM database schema",
	Long:         "Applies the goose SQL migrations embedded in the binary. Connection settings come from the DB_* environment variables.",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: withDB(func(db *sql.DB, args []string) error {
		if err := goose.Up(db, "."); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println("Migrations applied successfully")
		return nil
	}),
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: withDB(func(db *sql.DB, args []string) error {
		if err := goose.Down(db, "."); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		fmt.Println("Migration rolled back successfully")
		return nil
	}),
}

var redoCmd = &cobra.Command{
	Use:   "redo",
	Short: "Roll back and re-apply the latest migration",
	RunE: withDB(func(db *sql.DB, args []string) error {
		return goose.Redo(db, ".")
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of every migration",
	RunE: withDB(func(db *sql.DB, args []string) error {
		return goose.Status(db, ".")
	}),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: withDB(func(db *sql.DB, args []string) error {
		return goose.Version(db, ".")
	}),
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new SQL migration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// new files go to disk, not the embedded FS
		goose.SetBaseFS(nil)
		if err := goose.Create(nil, migrationsDir, args[0], "sql"); err != nil {
			return fmt.Errorf("failed to create migration: %w", err)
		}
		return nil
	},
}

// withDB opens the configured database and points goose at the embedded migrations.
func withDB(run func(db *sql.DB, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := sql.Open("postgres", database.DSN(cfg))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := migrations.Setup(); err != nil {
			return fmt.Errorf("failed to set dialect: %w", err)
		}
		return run(db, args)
	}
}

func init() {
	createCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory for the new migration file")
	rootCmd.AddCommand(upCmd, downCmd, redoCmd, statusCmd, versionCmd, createCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
