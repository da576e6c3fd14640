package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-countdown/internal/api/http/handlers"
	"github.com/spec-kit/sla-countdown/internal/auth"
	"github.com/spec-kit/sla-countdown/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Countdown      *handlers.CountdownHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Get("/:id/sla", cfg.Countdown.Current)
	tickets.Get("/:id/sla/stream", cfg.Countdown.Stream)
	tickets.Post("/:id/sla/snapshot",
		auth.RequireStaffRole(domain.StaffRoleTeamLead, domain.StaffRoleAdmin),
		cfg.Countdown.PushSnapshot)
}
