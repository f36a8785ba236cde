package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/event-service/internal/api/http/handlers"
	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
	// CredentialLimiter throttles the unauthenticated credential endpoints.
	// Nil leaves them unlimited.
	CredentialLimiter fiber.Handler
	Metrics           *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limit := cfg.CredentialLimiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	authn := cfg.AuthMiddleware.Handle

	// Middleware is attached per route: group middleware would also match
	// the public POST /auth/users.
	authGroup := app.Group("/auth")
	authGroup.Post("/users", limit, cfg.Users.Register)
	authGroup.Post("/token", limit, cfg.Users.Token)
	authGroup.Post("/token/refresh", limit, cfg.Users.Refresh)
	authGroup.Get("/users", authn, auth.RequireAdmin(), cfg.Users.List)
	authGroup.Get("/users/me", authn, cfg.Users.Me)
	authGroup.Patch("/users/me", authn, cfg.Users.UpdateMe)
	authGroup.Put("/users/me/password", authn, cfg.Users.ChangePassword)
	authGroup.Delete("/users/me", authn, cfg.Users.DeleteMe)

	api := app.Group("/api", authn)
	api.Get("/events", cfg.Events.List)
	api.Get("/events/my", cfg.Events.ListMine)
	api.Post("/events", auth.RequireAdmin(), cfg.Events.Create)
	api.Get("/events/:id", cfg.Events.Get)
	api.Delete("/events/:id", auth.RequireAdmin(), cfg.Events.Delete)
	api.Post("/events/:id/subscription", cfg.Events.Subscription)
	api.Post("/events/:id/subscribe", cfg.Events.Subscribe)
	api.Delete("/events/:id/subscribe", cfg.Events.Unsubscribe)
}
