package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/credit-transfer/internal/api/http/handlers"
	"github.com/spec-kit/credit-transfer/internal/auth"
	"github.com/spec-kit/credit-transfer/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Applications   *handlers.ApplicationsHandler
	Files          *handlers.FilesHandler
	AuthMiddleware *auth.AuthMiddleware
	// AuthRateLimit guards the unauthenticated auth endpoints; nil disables it.
	AuthRateLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	if cfg.AuthRateLimit != nil {
		authGroup.Use(cfg.AuthRateLimit)
	}
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/forgotpassword", cfg.Users.ForgotPassword)
	authGroup.Put("/resetpassword/:resetToken", cfg.Users.ResetPassword)
	authGroup.Post("/change-password", cfg.AuthMiddleware.Handle, cfg.Users.ChangePassword)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	apps := api.Group("/applications", cfg.AuthMiddleware.Handle)
	apps.Post("/", auth.RequireRole(domain.RoleStudent), cfg.Applications.Create)
	apps.Get("/", cfg.Applications.List)
	apps.Get("/:id", cfg.Applications.Get)
	apps.Put("/:id", auth.RequireRole(domain.RoleStudent), cfg.Applications.Update)
	apps.Delete("/:id", auth.RequireAdmin(), cfg.Applications.Delete)
	apps.Post("/:id/resubmit", auth.RequireRole(domain.RoleStudent), cfg.Applications.Resubmit)
	apps.Post("/:id/review", auth.RequireStaff(), cfg.Applications.Review)
	apps.Get("/:id/history", cfg.Applications.History)
	apps.Get("/:id/pdf", cfg.Applications.PDF)

	files := api.Group("/files", cfg.AuthMiddleware.Handle)
	files.Post("/", cfg.Files.Upload)
	files.Get("/:id", cfg.Files.Get)
}
