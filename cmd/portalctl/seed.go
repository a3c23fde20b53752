package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/citydesk/emergency-portal/internal/bootstrap"
	"github.com/citydesk/emergency-portal/internal/service"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed default services and the Admin role",
		Long:  `Create the default emergency services and an Admin role when those tables are empty. Safe to run repeatedly.`,
		RunE:  runSeed,
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := initEnv()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := commandContext(cmd)
	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()
	if stores.Postgres == nil {
		return errors.New("POSTGRES_DSN is required to seed")
	}

	directory := service.NewDirectoryService(service.DirectoryDependencies{
		ServiceRepo: stores.Services,
		RoleRepo:    stores.Roles,
		StaffRepo:   stores.Staff,
		TicketRepo:  stores.Tickets,
		Logger:      logger,
	})
	if err := directory.EnsureDefaults(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "defaults ensured")
	return nil
}
