package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireIdentity trusts the X-User-ID header set by the auth gateway in front
// of this service and exposes it to handlers via locals.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
