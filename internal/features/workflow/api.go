package workflow

import (
	"go-approvals/internal/common/api"
	"go-approvals/internal/config"
	"go-approvals/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WorkflowApi struct {
	controller *WorkflowController
	config     *config.Config
}

func NewWorkflowApi(controller *WorkflowController, config *config.Config) api.Route {
	return &WorkflowApi{
		controller: controller,
		config:     config,
	}
}

func (h *WorkflowApi) Setup(app *fiber.App) {
	workflows := app.Group("/api/workflows", middleware.AuthMiddleware(h.config.SkipAuth))

	workflows.Get("/", h.controller.ListTemplates)
	workflows.Post("/match", h.controller.MatchTemplate)
	workflows.Get("/:id", h.controller.GetTemplate)
	workflows.Post("/", middleware.AdminMiddleware(), h.controller.CreateTemplate)
	workflows.Put("/:id", middleware.AdminMiddleware(), h.controller.UpdateTemplate)
	workflows.Delete("/:id", middleware.AdminMiddleware(), h.controller.DeleteTemplate)
}
