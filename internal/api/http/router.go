package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/blog-service/internal/api/http/handlers"
	"github.com/spec-kit/blog-service/internal/auth"
)

// PublicPrefixes are paths the authenticator does not inspect. Bearer
// tokens sent to them are ignored.
var PublicPrefixes = []string{
	"/health",
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/api/v1/auth/verify-email",
	"/api/v1/auth/resend-verification",
	"/api/v1/auth/forgot-password",
	"/api/v1/auth/reset-password",
	"/api/v1/auth/roles",
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Admin  *handlers.AdminHandler
}

// RegisterRoutes wires HTTP routes. Guards are attached per route because
// fiber group middleware applies to every path under the prefix.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	requireAuth := auth.RequireAuthenticated()

	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/verify-email", cfg.Auth.VerifyEmail)
	authGroup.Post("/resend-verification", cfg.Auth.ResendVerification)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/roles", cfg.Auth.Roles)

	authGroup.Post("/change-password", requireAuth, cfg.Auth.ChangePassword)
	authGroup.Get("/profile", requireAuth, cfg.Auth.Profile)
	authGroup.Post("/logout", requireAuth, cfg.Auth.Logout)
	authGroup.Post("/request-role-upgrade", requireAuth, cfg.Auth.RequestRoleUpgrade)

	// Admin role checks happen in the service.
	authGroup.Post("/admin/change-user-role", requireAuth, cfg.Admin.ChangeUserRole)
	authGroup.Get("/admin/users", requireAuth, cfg.Admin.ListUsers)
	authGroup.Delete("/admin/users/:username", requireAuth, cfg.Admin.DeleteUser)
	authGroup.Get("/admin/users/:username/role-changes", requireAuth, cfg.Admin.RoleHistory)
}
