package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const pingTimeout = 2 * time.Second

type CheckHandler struct {
	ping func(context.Context) error
}

// NewCheckHandler reports healthy while ping succeeds. ping may be nil.
func NewCheckHandler(ping func(context.Context) error) *CheckHandler {
	return &CheckHandler{ping: ping}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"result": "unavailable"})
		}
	}
	return c.JSON(fiber.Map{"result": "ok"})
}
