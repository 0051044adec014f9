package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/rehoboam/cli/internal/output"
	"github.com/instantcocoa/rehoboam/migrations"
	pkgconfig "github.com/instantcocoa/rehoboam/pkg/config"
	"github.com/instantcocoa/rehoboam/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long:  "Commands for applying and rolling back database migrations.",
}

func openMigrator(cmd *cobra.Command) (*database.Migrator, func(), error) {
	ctx := cmd.Context()

	base, err := pkgconfig.Load("cli")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !base.UsePostgresStorage() {
		return nil, nil, fmt.Errorf("migrations require the postgres backend (set REHOBOAM_STORAGE_BACKEND=postgres)")
	}

	db, err := database.ConnectDSN(ctx, base.DatabaseDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	m := database.NewMigrator(db, "rehoboam")
	if err := m.LoadMigrations(migrations.FS, migrations.Dir); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return m, func() { db.Close() }, nil
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeDB, err := openMigrator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := m.Up(cmd.Context()); err != nil {
			return err
		}

		version, err := m.Version(cmd.Context())
		if err != nil {
			return err
		}
		output.Success("schema at version %d", version)
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeDB, err := openMigrator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		if err := m.Down(cmd.Context()); err != nil {
			return err
		}

		version, err := m.Version(cmd.Context())
		if err != nil {
			return err
		}
		output.Success("schema at version %d", version)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeDB, err := openMigrator(cmd)
		if err != nil {
			return err
		}
		defer closeDB()

		version, err := m.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
}
