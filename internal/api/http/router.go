package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/citydesk/emergency-portal/internal/api/http/handlers"
	"github.com/citydesk/emergency-portal/internal/auth"
	"github.com/citydesk/emergency-portal/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Per-ticket scope checks live in the services;
// the guards here only reject callers that can never succeed.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	api.Get("/me", cfg.Users.Me)
	api.Get("/services", cfg.Users.Services)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", auth.RequirePermission(domain.PermissionViewTickets), cfg.Tickets.ListTickets)
	tickets.Get("/stats", auth.RequirePermission(domain.PermissionViewTickets), cfg.Tickets.Stats)
	tickets.Get("/:id", auth.RequirePermission(domain.PermissionViewTickets), cfg.Tickets.GetTicket)
	tickets.Get("/:id/actions", auth.RequirePermission(domain.PermissionViewTickets), cfg.Tickets.History)
	tickets.Post("/:id/accept", cfg.Tickets.Accept)
	tickets.Post("/:id/deny", cfg.Tickets.Deny)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Delete("/:id", auth.RequirePermission(domain.PermissionAdminPanel), cfg.Tickets.DeleteTicket)

	admin := api.Group("/admin", auth.RequirePermission(
		domain.PermissionManageServices,
		domain.PermissionManageRoles,
		domain.PermissionManageStaff,
	))
	admin.Get("/services", cfg.Admin.ListServices)
	admin.Post("/services", cfg.Admin.CreateService)
	admin.Post("/services/test", cfg.Admin.TestAllWebhooks)
	admin.Get("/services/:id", cfg.Admin.GetService)
	admin.Put("/services/:id", cfg.Admin.UpdateService)
	admin.Delete("/services/:id", cfg.Admin.DeleteService)
	admin.Post("/services/:id/test", cfg.Admin.TestWebhook)

	admin.Get("/roles", cfg.Admin.ListRoles)
	admin.Post("/roles", cfg.Admin.CreateRole)
	admin.Get("/roles/:id", cfg.Admin.GetRole)
	admin.Put("/roles/:id", cfg.Admin.UpdateRole)
	admin.Delete("/roles/:id", cfg.Admin.DeleteRole)

	admin.Get("/staff", cfg.Admin.ListStaff)
	admin.Post("/staff", cfg.Admin.CreateStaff)
	admin.Get("/staff/:id", cfg.Admin.GetStaff)
	admin.Put("/staff/:id", cfg.Admin.UpdateStaff)
	admin.Delete("/staff/:id", cfg.Admin.DeleteStaff)
}
