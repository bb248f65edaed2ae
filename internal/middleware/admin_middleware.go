package middleware

import (
	"slices"
	"strings"

	"go-approvals/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// IsAdmin reports whether the claims carry the admin role
func IsAdmin(claims *utils.UserClaims) bool {
	return slices.ContainsFunc(claims.Roles, func(role string) bool {
		return strings.EqualFold(role, "admin")
	})
}

// AdminMiddleware checks if the user has admin role
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get user from context (set by AuthMiddleware)
		claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if len(claims.Roles) == 0 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: No roles assigned",
			})
		}

		if !IsAdmin(claims) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: Admin role required",
			})
		}

		return c.Next()
	}
}
