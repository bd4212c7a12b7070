package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/runar/internal/config"
	"github.com/noah-isme/runar/internal/handler"
	"github.com/noah-isme/runar/internal/middleware"
	"github.com/noah-isme/runar/internal/models"
	"github.com/noah-isme/runar/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ConversationHandler *handler.ConversationHandler
	ModerationHandler   *handler.ModerationHandler
	ViewStreamHandler   *handler.ViewStreamHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	chat := api.Group("/chat", jwtMiddleware)
	if deps.ViewStreamHandler != nil {
		deps.ViewStreamHandler.Register(chat)
	}
	if deps.ConversationHandler != nil {
		deps.ConversationHandler.Register(chat)
	}

	if deps.ModerationHandler != nil {
		moderation := api.Group("/moderation", jwtMiddleware, middleware.RequireRole(models.RoleGM))
		deps.ModerationHandler.Register(moderation)
	}
}
