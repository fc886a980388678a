package api

import (
	"github.com/gofiber/fiber/v2"

	"legis/types"
)

// ConfigHandler exposes the settings clients need to mirror server rules.
type ConfigHandler struct {
	public types.PublicConfig
}

func NewConfigHandler(public types.PublicConfig) *ConfigHandler {
	return &ConfigHandler{
		public: public,
	}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(h.public)
}
