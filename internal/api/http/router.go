package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-portal/internal/api/http/handlers"
	"github.com/spec-kit/grievance-portal/internal/auth"
	"github.com/spec-kit/grievance-portal/internal/domain"
)

// BasePath prefixes every grievance endpoint.
const BasePath = "/api/grievances"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Grievances     *handlers.GrievanceHandler
	Identities     *handlers.IdentityHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Public routes are registered before the
// protected group so they never reach the auth middleware.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group(BasePath)
	api.Post("/login", cfg.Auth.Login)
	api.Post("/register", cfg.Auth.Register)
	api.Post("/forgot-password", cfg.Auth.ForgotPassword)
	api.Post("/reset-password", cfg.Auth.ResetPassword)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/getAll", cfg.Grievances.List)
	protected.Post("/add", cfg.Grievances.Add)
	protected.Put("/update/:id", cfg.Grievances.Update)
	protected.Get("/history/:id", cfg.Grievances.History)
	protected.Get("/download/:id", cfg.Grievances.Download)

	managers := protected.Group("/users", auth.RequireRoles(domain.RoleAdmin, domain.RoleSuperAdmin))
	managers.Get("", cfg.Identities.List)
	managers.Delete("/:id", cfg.Identities.Delete)
	managers.Put("/:id/role", cfg.Identities.ChangeRole)
}
