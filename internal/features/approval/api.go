package approval

import (
	"go-approvals/internal/common/api"
	"go-approvals/internal/config"
	"go-approvals/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ApprovalApi struct {
	controller *ApprovalController
	config     *config.Config
}

func NewApprovalApi(controller *ApprovalController, config *config.Config) api.Route {
	return &ApprovalApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers approval request routes
func (h *ApprovalApi) Setup(app *fiber.App) {
	approvals := app.Group("/api/approvals", middleware.AuthMiddleware(h.config.SkipAuth))

	approvals.Post("/", h.controller.CreateRequest)
	approvals.Get("/", h.controller.ListRequests)
	approvals.Get("/pending", h.controller.ListPending)
	approvals.Get("/statistics", h.controller.GetStatistics)
	approvals.Get("/export", h.controller.Export)
	approvals.Get("/:id", h.controller.GetRequest)
	approvals.Post("/:id/steps/:index/approve", h.controller.Approve)
	approvals.Post("/:id/steps/:index/reject", h.controller.Reject)
	approvals.Post("/:id/escalate", middleware.AdminMiddleware(), h.controller.Escalate)
}
