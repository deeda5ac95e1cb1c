package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Sla    *handlers.SlaHandler
	Admin  *handlers.AdminHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	sla := app.Group("/sla")
	sla.Get("/metrics", cfg.Sla.Metrics)
	sla.Get("/dashboard", cfg.Sla.Dashboard)
	sla.Get("/risk", cfg.Sla.Risk)
	sla.Get("/breaches", cfg.Sla.Breaches)
	sla.Post("/recompute", cfg.Sla.Recompute)

	sla.Get("/scheduler", cfg.Admin.SchedulerStatus)
	sla.Get("/cache", cfg.Admin.CacheStats)
	sla.Post("/holidays/generate/:year", cfg.Admin.GenerateHolidays)
	sla.Get("/holidays/:year", cfg.Admin.ListHolidays)

	tickets := sla.Group("/tickets/:id")
	tickets.Get("", cfg.Sla.Ticket)
	tickets.Post("/status", cfg.Admin.StatusChanged)
	tickets.Post("/pause", cfg.Admin.OpenPause)
	tickets.Post("/unpause", cfg.Admin.ClosePause)
	tickets.Get("/pauses", cfg.Admin.ListPauses)
}
