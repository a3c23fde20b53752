package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/persistence"
)

var steps int

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE:  runMigrateDown,
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE:  runMigrateUp,
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE:  runMigrateVersion,
		},
	)
	return cmd
}

func openPostgres(cmd *cobra.Command) (*persistence.Postgres, *zap.Logger, error) {
	cfg, logger, err := initEnv()
	if err != nil {
		return nil, nil, err
	}
	pg, err := persistence.NewPostgres(commandContext(cmd), cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	if !pg.Enabled() {
		return nil, nil, errors.New("POSTGRES_DSN is required for migrations")
	}
	return pg, logger, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	pg, logger, err := openPostgres(cmd)
	if err != nil {
		return err
	}
	defer pg.Close()
	defer logger.Sync() //nolint:errcheck

	return persistence.RunMigrations(commandContext(cmd), pg.PoolHandle(), logger)
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	if steps < 1 {
		return errors.New("--steps must be at least 1")
	}
	pg, logger, err := openPostgres(cmd)
	if err != nil {
		return err
	}
	defer pg.Close()
	defer logger.Sync() //nolint:errcheck

	return persistence.RollbackMigrations(commandContext(cmd), pg.PoolHandle(), steps, logger)
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	pg, logger, err := openPostgres(cmd)
	if err != nil {
		return err
	}
	defer pg.Close()
	defer logger.Sync() //nolint:errcheck

	version, err := persistence.MigrationVersion(commandContext(cmd), pg.PoolHandle())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}
