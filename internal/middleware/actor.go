package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"zinara-backend/internal/models"
	"zinara-backend/internal/pkg/response"
)

const actorLocalKey = "actor"

// Actor resolves the acting user from the gateway-provided identity headers
// and stores it in request locals. Requests without an identity are rejected.
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-Id"))
		role := models.UserRole(strings.ToUpper(strings.TrimSpace(c.Get("X-User-Role"))))
		branchID := strings.ToUpper(strings.TrimSpace(c.Get("X-Branch-Id")))

		if userID == "" {
			return response.Fail(c, fiber.StatusUnauthorized, "Missing X-User-Id header.")
		}
		switch role {
		case models.RoleHQAdmin:
			branchID = ""
		case models.RoleBranchUser:
			if branchID == "" {
				return response.Fail(c, fiber.StatusUnauthorized, "BRANCH_USER requires X-Branch-Id header.")
			}
		default:
			return response.Fail(c, fiber.StatusUnauthorized, "X-User-Role must be HQ_ADMIN or BRANCH_USER.")
		}

		c.Locals(actorLocalKey, models.Actor{UserID: userID, Role: role, BranchID: branchID})
		return c.Next()
	}
}

// GetActor returns the actor stored by the Actor middleware.
func GetActor(c *fiber.Ctx) models.Actor {
	if a, ok := c.Locals(actorLocalKey).(models.Actor); ok {
		return a
	}
	return models.Actor{}
}

// RequireHQ rejects non-HQ actors before the handler runs.
func RequireHQ() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !GetActor(c).IsHQ() {
			return response.Fail(c, fiber.StatusForbidden, "HQ_ADMIN role required.")
		}
		return c.Next()
	}
}
