package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS allows the configured frontend origin. An empty origin config falls
// back to allow-all for local development.
func CORS(allowedOrigin string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get("Origin")
		switch {
		case allowedOrigin == "" && origin != "":
			c.Set("Access-Control-Allow-Origin", origin)
		case origin == allowedOrigin && origin != "":
			c.Set("Access-Control-Allow-Origin", origin)
		}
		c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id, X-User-Role, X-Branch-Id, X-Request-Id")
		c.Set("Access-Control-Allow-Credentials", "true")
		c.Set("Vary", "Origin")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
