// Package http wires the fiber application: middleware, routes, and the
// error envelope shared by every endpoint.
package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/api/http/handlers"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/observability"
)

// RouterDeps bundles the handlers and middleware behind the HTTP surface.
type RouterDeps struct {
	Auth     *handlers.AuthHandler
	Requests *handlers.RequestsHandler
	Admin    *handlers.AdminRequestsHandler
	Advisor  *handlers.AdvisorHandler
	Health   *handlers.HealthHandler
	AuthMW   *auth.AuthMiddleware
}

// RegisterMiddlewares installs the shared middleware stack.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(Recover(logger))
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(Timeout(timeout))
}

// RegisterRoutes mounts every endpoint.
func RegisterRoutes(app *fiber.App, deps RouterDeps) {
	app.Get("/health/live", deps.Health.Live)
	app.Get("/health/ready", deps.Health.Ready)

	api := app.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", deps.Auth.Register)
	authGroup.Post("/login", deps.Auth.Login)

	requests := api.Group("/requests", deps.AuthMW.Handle)
	requests.Post("/", deps.Requests.Create)
	requests.Get("/", deps.Requests.List)
	requests.Get("/:id", deps.Requests.Get)

	api.Post("/advisor/troubleshoot", deps.AuthMW.Handle, deps.Requests.Troubleshoot)

	admin := api.Group("/admin", deps.AuthMW.Handle, auth.RequireAdmin())
	admin.Get("/requests", deps.Admin.List)
	admin.Get("/requests/stream", deps.Admin.Stream)
	admin.Get("/requests/:id", deps.Admin.Get)
	admin.Patch("/requests/:id/status", deps.Admin.UpdateStatus)
	admin.Post("/requests/:id/technician", deps.Admin.AssignTechnician)
	admin.Patch("/requests/:id/notes", deps.Admin.UpdateWorkNotes)
	admin.Get("/requests/:id/history", deps.Admin.History)
	admin.Get("/technicians", deps.Admin.Technicians)
	admin.Get("/revenue", deps.Admin.Revenue)
	admin.Post("/advisor/categorize", deps.Advisor.Categorize)
	admin.Post("/advisor/suggest-technician", deps.Advisor.SuggestTechnician)
}
