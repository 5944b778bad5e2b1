package health

import (
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service  *Service
	AdminKey string
}

// Liveness is the bare probe for load balancers.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// JSON returns the full health report. When an admin key is configured the
// caller must present it.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	if h.AdminKey != "" && c.Get("X-Admin-Key") != h.AdminKey {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid admin key.")
	}
	result := h.Service.Collect(c.Context())
	status := fiber.StatusOK
	if result.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(result)
}

func (h *Handlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Liveness)
	app.Get("/health/json", h.JSON)
}
