package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/citydesk/emergency-portal/internal/api/http"
	"github.com/citydesk/emergency-portal/internal/api/http/handlers"
	"github.com/citydesk/emergency-portal/internal/auth"
	"github.com/citydesk/emergency-portal/internal/bootstrap"
	"github.com/citydesk/emergency-portal/internal/config"
	"github.com/citydesk/emergency-portal/internal/discord"
	"github.com/citydesk/emergency-portal/internal/events"
	"github.com/citydesk/emergency-portal/internal/observability"
	"github.com/citydesk/emergency-portal/internal/service"
	"github.com/citydesk/emergency-portal/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewAsyncDispatcher(logger)

	resolver := auth.NewResolver(stores.Staff, stores.Roles, stores.Services, cfg.Auth.SuperuserID, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTLMinutes)

	notifier := service.NewNotificationService(dispatcher, stores.Services, discord.NewClient(cfg.Notification.WebhookTimeout), metrics, logger, cfg.Notification)
	worker.StartNotificationWorker(notifier, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    stores.Tickets,
		ActionRepo:    stores.Actions,
		ServiceRepo:   stores.Services,
		DeletionQueue: stores.DeletionQueue,
		Publisher:     dispatcher,
		Metrics:       metrics,
		Logger:        logger,
		DeletionGrace: cfg.Lifecycle.DeletionGrace,
	})
	directoryService := service.NewDirectoryService(service.DirectoryDependencies{
		ServiceRepo:   stores.Services,
		RoleRepo:      stores.Roles,
		StaffRepo:     stores.Staff,
		TicketRepo:    stores.Tickets,
		WebhookTester: notifier,
		Logger:        logger,
		BulkTestDelay: cfg.Notification.BulkTestDelay,
	})
	if cfg.Seed.DefaultsOnBoot {
		if err := directoryService.EnsureDefaults(ctx); err != nil {
			logger.Fatal("failed to seed defaults", zap.Error(err))
		}
	}

	deletionWorker := worker.NewDeletionWorker(worker.DeletionDependencies{
		TicketRepo:    stores.Tickets,
		DeletionQueue: stores.DeletionQueue,
		Metrics:       metrics,
		Logger:        logger,
		Config:        cfg.Lifecycle,
	})
	deletionWorker.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.Postgres, stores.Redis, metrics),
		Users:          handlers.NewUsersHandler(directoryService),
		Tickets:        handlers.NewTicketsHandler(ticketService, service.NewServiceRefResolver(stores.Services)),
		Admin:          handlers.NewAdminHandler(directoryService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, resolver),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	deletionWorker.Stop()
	dispatcher.Close()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
