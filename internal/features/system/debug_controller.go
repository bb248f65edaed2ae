package system

import (
	"go-approvals/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct{}

func NewDebugController() *DebugController {
	return &DebugController{}
}

// GetCurrentUser godoc
// @Summary      Get current user info
// @Description  Get the current user's identity and roles from the JWT
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFromContext(ctx.UserContext())
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	return ctx.JSON(fiber.Map{
		"user_id": claims.UserID,
		"name":    claims.Name,
		"roles":   claims.Roles,
		"admin":   middleware.IsAdmin(claims),
	})
}
