package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/citydesk/emergency-portal/internal/bootstrap"
	"github.com/citydesk/emergency-portal/internal/discord"
	"github.com/citydesk/emergency-portal/internal/observability"
	"github.com/citydesk/emergency-portal/internal/service"
)

func newWebhooksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhooks",
		Short: "Discord webhook tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test [service-id]",
		Short: "Send the test message to one service, or to every service with a webhook",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWebhooksTest,
	})
	return cmd
}

func runWebhooksTest(cmd *cobra.Command, args []string) error {
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

	notifier := service.NewNotificationService(nil, stores.Services, discord.NewClient(cfg.Notification.WebhookTimeout), observability.NewMetrics(), logger, cfg.Notification)
	directory := service.NewDirectoryService(service.DirectoryDependencies{
		ServiceRepo:   stores.Services,
		RoleRepo:      stores.Roles,
		StaffRepo:     stores.Staff,
		TicketRepo:    stores.Tickets,
		WebhookTester: notifier,
		Logger:        logger,
		BulkTestDelay: cfg.Notification.BulkTestDelay,
	})

	var results []service.WebhookTestResult
	if len(args) == 1 {
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid service id %q", args[0])
		}
		result, terr := directory.TestWebhook(ctx, operatorAccess(), id)
		if result == nil {
			return terr
		}
		results = append(results, *result)
	} else {
		results, err = directory.TestAllWebhooks(ctx, operatorAccess())
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tRESULT")
	failed := 0
	for _, r := range results {
		outcome := "ok"
		if !r.OK {
			outcome = "failed: " + r.Error
			failed++
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.ServiceID, r.Service, outcome)
	}
	_ = w.Flush()

	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d webhook tests failed", failed, len(results))
	}
	return nil
}
