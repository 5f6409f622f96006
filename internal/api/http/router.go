package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/luiscanel/service-desk/internal/api/http/handlers"
	"github.com/luiscanel/service-desk/internal/auth"
	"github.com/luiscanel/service-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Staff          *handlers.StaffHandler
	Tickets        *handlers.TicketsHandler
	SlaPolicies    *handlers.SlaPoliciesHandler
	SlaMonitor     *handlers.SlaMonitorHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	anyStaff := auth.RequireStaffRole()
	adminOnly := auth.RequireStaffRole(domain.StaffRoleAdmin)
	leads := auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin)

	policies := app.Group("/sla/policies", cfg.AuthMiddleware, anyStaff)
	policies.Get("/", cfg.SlaPolicies.List)
	policies.Get("/:id", cfg.SlaPolicies.Get)
	policies.Post("/", adminOnly, cfg.SlaPolicies.Create)
	policies.Put("/:id", adminOnly, cfg.SlaPolicies.Update)
	policies.Delete("/:id", adminOnly, cfg.SlaPolicies.Delete)

	monitor := app.Group("/sla/monitor", cfg.AuthMiddleware, anyStaff)
	monitor.Get("/stats", cfg.SlaMonitor.Stats)
	monitor.Get("/near-breach", cfg.SlaMonitor.NearBreach)
	monitor.Get("/breached", cfg.SlaMonitor.Breached)
	monitor.Get("/metrics", cfg.SlaMonitor.Metrics)

	tickets := app.Group("/tickets", cfg.AuthMiddleware, anyStaff)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/replies", cfg.Tickets.AddReply)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)
	tickets.Patch("/:id/priority", leads, cfg.Tickets.UpdatePriority)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Get("/:id/sla-status", cfg.Tickets.SlaStatus)
	tickets.Get("/:id/sla-deadlines", cfg.Tickets.SlaDeadlines)
}
