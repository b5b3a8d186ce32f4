// middleware/auth.go
package middleware

import (
	"strings"

	"habit-progression-engine/logger"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity and roles set by the Gateway.
// Every route behind it acts on behalf of a user, so X-User-ID is mandatory.
func UserContextMiddleware(log *logger.Logger) fiber.Handler {
	log = log.With("middleware", "UserContext")

	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn("X-User-ID missing", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)

		log.Debug("User context", "user_id", userID, "roles", roles, "path", c.Path())
		return c.Next()
	}
}

// UserID returns the user id set by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// HasRole reports whether the gateway granted role to the caller.
func HasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals("user_roles").([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRole rejects callers the gateway did not grant role.
func RequireRole(role string, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !HasRole(c, role) {
			log.Warn("Role required", "role", role, "user_id", UserID(c), "path", c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
				"cause": "requires " + role,
			})
		}
		return c.Next()
	}
}
