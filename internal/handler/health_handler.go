package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/runar/internal/config"
	"github.com/noah-isme/runar/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Transport string    `json:"transport"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Service:   cfg.AppName,
			UserID:    cfg.UserID,
			Role:      cfg.Role,
			Transport: cfg.TransportDriver,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
