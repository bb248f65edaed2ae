package approval

import (
	"context"
	"errors"
	"fmt"

	"go-approvals/internal/common/clock"
	"go-approvals/internal/middleware"
	"go-approvals/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ApprovalController struct {
	Factory RequestFactory
	Engine  ApprovalEngine
	Clock   clock.Clock
}

func NewApprovalController(factory RequestFactory, engine ApprovalEngine, clk clock.Clock) *ApprovalController {
	return &ApprovalController{
		Factory: factory,
		Engine:  engine,
		Clock:   clk,
	}
}

type createRequestInput struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
	WorkflowID string         `json:"workflow_id"`
}

type decisionInput struct {
	Comment string `json:"comment"`
}

// CreateRequest godoc
// @Summary Start approval for a document
// @Description Matches the document against the workflow templates, or uses workflow_id, and opens a request
// @Tags approvals
// @Accept json
// @Produce json
// @Param document body createRequestInput true "Document"
// @Success 201 {object} CreateResult "Approval required"
// @Success 200 {object} CreateResult "No approval required"
// @Failure 400 {object} map[string]string "Invalid request body"
// @Failure 404 {object} map[string]string "Workflow not found"
// @Router /api/approvals [post]
func (c *ApprovalController) CreateRequest(ctx *fiber.Ctx) error {
	var input createRequestInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if input.Type == "" || input.ID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type and id are required"})
	}

	result, err := c.Factory.CreateRequest(ctx.UserContext(), input.Type, input.ID, input.Data, input.WorkflowID)
	if err != nil {
		return writeError(ctx, err)
	}
	if !result.Required {
		return ctx.JSON(result)
	}
	return ctx.Status(fiber.StatusCreated).JSON(result)
}

// ListRequests godoc
// @Summary List approval requests
// @Description Filters by the active step role or by document id; without filters every request is returned
// @Tags approvals
// @Produce json
// @Param role query string false "Role of the active step"
// @Param document_id query string false "Document ID"
// @Success 200 {array} Request
// @Router /api/approvals [get]
func (c *ApprovalController) ListRequests(ctx *fiber.Ctx) error {
	var (
		requests []Request
		err      error
	)
	switch {
	case ctx.Query("role") != "":
		requests, err = c.Engine.GetPendingForRole(ctx.UserContext(), ctx.Query("role"))
	case ctx.Query("document_id") != "":
		requests, err = c.Engine.GetRequestsByDocument(ctx.UserContext(), ctx.Query("document_id"))
	default:
		requests, err = c.Engine.ListRequests(ctx.UserContext())
	}
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(requests)
}

// ListPending godoc
// @Summary List open requests, including escalated ones
// @Tags approvals
// @Router /api/approvals/pending [get]
func (c *ApprovalController) ListPending(ctx *fiber.Ctx) error {
	requests, err := c.Engine.GetAllPending(ctx.UserContext())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(requests)
}

// GetStatistics godoc
// @Summary Request counts, average approval time and approval rate
// @Tags approvals
// @Router /api/approvals/statistics [get]
func (c *ApprovalController) GetStatistics(ctx *fiber.Ctx) error {
	stats, err := c.Engine.GetStatistics(ctx.UserContext())
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(stats)
}

// Export godoc
// @Summary Export all requests as an Excel workbook
// @Tags approvals
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /api/approvals/export [get]
func (c *ApprovalController) Export(ctx *fiber.Ctx) error {
	requests, err := c.Engine.ListRequests(ctx.UserContext())
	if err != nil {
		return writeError(ctx, err)
	}

	data, err := ExportToExcel(requests)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(c.Clock.Now())))
	return ctx.Send(data)
}

// GetRequest godoc
// @Summary Get an approval request
// @Tags approvals
// @Failure 404 {object} map[string]string "Request not found"
// @Router /api/approvals/{id} [get]
func (c *ApprovalController) GetRequest(ctx *fiber.Ctx) error {
	request, err := c.Engine.GetRequest(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(request)
}

// Approve godoc
// @Summary Approve the active step
// @Description The caller must hold the step role unless they are an admin
// @Tags approvals
// @Param id path string true "Request ID"
// @Param index path int true "Step index"
// @Param decision body decisionInput false "Comment"
// @Success 200 {object} Request
// @Failure 403 {object} map[string]string "Role not allowed"
// @Failure 409 {object} map[string]string "Step not pending"
// @Router /api/approvals/{id}/steps/{index}/approve [post]
func (c *ApprovalController) Approve(ctx *fiber.Ctx) error {
	return c.decide(ctx, c.Engine.Approve)
}

// Reject godoc
// @Summary Reject the active step, ending the request
// @Tags approvals
// @Router /api/approvals/{id}/steps/{index}/reject [post]
func (c *ApprovalController) Reject(ctx *fiber.Ctx) error {
	return c.decide(ctx, c.Engine.Reject)
}

// Escalate godoc
// @Summary Escalate the active step manually
// @Tags approvals
// @Router /api/approvals/{id}/escalate [post]
func (c *ApprovalController) Escalate(ctx *fiber.Ctx) error {
	request, escalated, err := c.Engine.Escalate(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(fiber.Map{"escalated": escalated, "request": request})
}

type decisionFunc func(ctx context.Context, id string, stepIndex int, approver, comment string) (*Request, error)

func (c *ApprovalController) decide(ctx *fiber.Ctx, apply decisionFunc) error {
	id := ctx.Params("id")
	index, err := ctx.ParamsInt("index")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid step index"})
	}

	var input decisionInput
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&input); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}

	claims, ok := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	if !middleware.IsAdmin(claims) {
		allowed, err := c.Engine.CanAct(ctx.UserContext(), id, index, claims.Roles)
		if err != nil {
			return writeError(ctx, err)
		}
		if !allowed {
			return writeError(ctx, ErrRoleNotAllowed)
		}
	}

	request, err := apply(ctx.UserContext(), id, index, claims.DisplayName(), input.Comment)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(request)
}

func writeError(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrStepNotFound), errors.Is(err, ErrTemplateNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrStepNotPending):
		status = fiber.StatusConflict
	case errors.Is(err, ErrRoleNotAllowed):
		status = fiber.StatusForbidden
	case errors.Is(err, ErrInvalidTemplate):
		status = fiber.StatusBadRequest
	}
	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
