package task

import (
	"github.com/gofiber/fiber/v2"
)

type TaskController struct {
	Service TaskService
}

func NewTaskController(service TaskService) *TaskController {
	return &TaskController{Service: service}
}

// ListTasks godoc
// @Summary List follow-up tasks
// @Tags tasks
// @Param request_id query string false "Only tasks of this request"
// @Success 200 {array} Task
// @Router /api/tasks [get]
func (c *TaskController) ListTasks(ctx *fiber.Ctx) error {
	tasks, err := c.Service.ListTasks(ctx.UserContext(), ctx.Query("request_id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(tasks)
}
