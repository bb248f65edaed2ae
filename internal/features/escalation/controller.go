package escalation

import (
	"go-approvals/internal/common/clock"

	"github.com/gofiber/fiber/v2"
)

type EscalationController struct {
	Monitor EscalationMonitor
	Clock   clock.Clock
}

func NewEscalationController(monitor EscalationMonitor, clk clock.Clock) *EscalationController {
	return &EscalationController{Monitor: monitor, Clock: clk}
}

// CheckTimeouts godoc
// @Summary Run an escalation scan now
// @Tags escalations
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/escalations/check [post]
func (c *EscalationController) CheckTimeouts(ctx *fiber.Ctx) error {
	now := c.Clock.Now()
	escalated, err := c.Monitor.CheckTimeouts(ctx.UserContext(), now)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"checked_at": now, "escalated": escalated})
}
