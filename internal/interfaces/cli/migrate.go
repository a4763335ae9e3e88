package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/turtacn/MolDock-Screen/internal/config"
	"github.com/turtacn/MolDock-Screen/internal/infrastructure/database/postgres"
)

const defaultMigrationsPath = "migrations"

// NewMigrateCommand creates the migrate command group for managing the
// database schema.
func NewMigrateCommand() *cobra.Command {
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.PersistentFlags().StringVar(&migrationsPath, "migrations", "", "migrations directory (default from config)")

	cmd.AddCommand(
		newMigrateUpCommand(&migrationsPath),
		newMigrateDownCommand(&migrationsPath),
		newMigrateStatusCommand(&migrationsPath),
		newMigrateForceCommand(&migrationsPath),
	)

	return cmd
}

func newMigrateUpCommand(migrationsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := migrateTarget(cmd, *migrationsPath)
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dbURL, path); err != nil {
				return err
			}
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}
}

func newMigrateDownCommand(migrationsPath *string) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := migrateTarget(cmd, *migrationsPath)
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigration(dbURL, path, steps); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newMigrateStatusCommand(migrationsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := migrateTarget(cmd, *migrationsPath)
			if err != nil {
				return err
			}
			version, dirty, err := postgres.MigrationStatus(dbURL, path)
			if err != nil {
				return err
			}
			return PrintResult(cmd, map[string]interface{}{
				"version": version,
				"dirty":   dirty,
			})
		},
	}
}

func newMigrateForceCommand(migrationsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force the migration version after a failed migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var version int
			if _, err := fmt.Sscanf(args[0], "%d", &version); err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			dbURL, path, err := migrateTarget(cmd, *migrationsPath)
			if err != nil {
				return err
			}
			if err := postgres.ForceMigrationVersion(dbURL, path, version); err != nil {
				return err
			}
			PrintSuccess(cmd, fmt.Sprintf("migration version forced to %d", version))
			return nil
		},
	}
}

// migrateTarget resolves the database URL and migrations path from the CLI
// context and flags.
func migrateTarget(cmd *cobra.Command, migrationsPath string) (string, string, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return "", "", err
	}

	// Config loading is lenient for the CLI; the database section is only
	// required here.
	if err := cliCtx.Config.Database.Validate(); err != nil {
		return "", "", err
	}

	path := migrationsPath
	if path == "" {
		path = cliCtx.Config.Database.MigrationPath
	}
	if path == "" {
		path = defaultMigrationsPath
	}

	return databaseURL(cliCtx.Config.Database), path, nil
}

// databaseURL builds a postgres:// connection URL from configuration.
func databaseURL(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     cfg.DBName,
		RawQuery: "sslmode=" + sslMode,
	}
	return u.String()
}
