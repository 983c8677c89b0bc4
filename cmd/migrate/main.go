package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"chat-pipeline/internal/config"
	"chat-pipeline/pkg/logger"
)

var migrationsDir string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Database migration management",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "", "path to migrations directory (default: $MIGRATIONS_DIR or ./migrations)")

	cmd.AddCommand(upCmd())
	cmd.AddCommand(downCmd())
	cmd.AddCommand(versionCmd())
	cmd.AddCommand(forceCmd())
	return cmd
}

func resolveMigrationsDir() string {
	if migrationsDir != "" {
		return migrationsDir
	}
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return "migrations"
}

// newMigrator reads the same env config as the API so both agree on the database.
func newMigrator() (*migrate.Migrate, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.App.Env)
	m, err := migrate.New("file://"+resolveMigrationsDir(), cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, log, nil
}

func closeMigrator(m *migrate.Migrate, log *slog.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn("close migrator", "source_err", srcErr, "db_err", dbErr)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, log, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(m, log)

			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migrate up: %w", err)
			}
			v, dirty, _ := m.Version()
			log.Info("migration complete", "version", v, "dirty", dirty)
			return nil
		},
	}
}

func downCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (default: 1 step)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, log, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(m, log)

			if steps <= 0 {
				steps = 1
			}
			if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migrate down: %w", err)
			}
			v, dirty, _ := m.Version()
			log.Info("rollback complete", "version", v, "dirty", dirty)
			return nil
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, log, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(m, log)

			v, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
			return nil
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations (clears dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v int
			if _, err := fmt.Sscanf(args[0], "%d", &v); err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			m, log, err := newMigrator()
			if err != nil {
				return err
			}
			defer closeMigrator(m, log)

			if err := m.Force(v); err != nil {
				return fmt.Errorf("force: %w", err)
			}
			log.Info("version forced", "version", v)
			return nil
		},
	}
}
