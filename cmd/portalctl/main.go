package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citydesk/emergency-portal/internal/config"
	"github.com/citydesk/emergency-portal/internal/domain"
	"github.com/citydesk/emergency-portal/internal/observability"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Emergency services portal operator tool",
		Long:          `portalctl manages the portal database, seeds default data, mints development session tokens and tests Discord webhooks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
		newTokenCommand(),
		newWebhooksCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// initEnv loads configuration and a logger the same way the API server does.
func initEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, zap.String("component", "portalctl"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}

// operatorAccess is the access the CLI acts with; whoever can run it already holds
// the database credentials.
func operatorAccess() *domain.Access {
	return &domain.Access{
		Identity:    domain.Identity{ExternalID: "portalctl", DisplayName: "portalctl"},
		Permissions: domain.NewPermissionSet(domain.AllPermissions()...),
		IsSuper:     true,
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
