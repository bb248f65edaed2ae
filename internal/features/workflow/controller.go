package workflow

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type WorkflowController struct {
	Registry TemplateRegistry
}

func NewWorkflowController(registry TemplateRegistry) *WorkflowController {
	return &WorkflowController{Registry: registry}
}

// CreateTemplate godoc
// @Summary Register a workflow template
// @Tags workflows
// @Accept json
// @Produce json
// @Param template body Template true "Template"
// @Success 201 {object} Template
// @Failure 400 {object} map[string]string "Invalid template"
// @Router /api/workflows [post]
func (c *WorkflowController) CreateTemplate(ctx *fiber.Ctx) error {
	var input Template
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	template, err := c.Registry.AddTemplate(ctx.UserContext(), input)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(template)
}

// UpdateTemplate godoc
// @Summary Replace a workflow template; in-flight requests are unaffected
// @Tags workflows
// @Router /api/workflows/{id} [put]
func (c *WorkflowController) UpdateTemplate(ctx *fiber.Ctx) error {
	var input Template
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	template, err := c.Registry.UpdateTemplate(ctx.UserContext(), ctx.Params("id"), input)
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(template)
}

// DeleteTemplate godoc
// @Summary Delete a workflow template
// @Tags workflows
// @Success 204 {object} nil "No Content"
// @Router /api/workflows/{id} [delete]
func (c *WorkflowController) DeleteTemplate(ctx *fiber.Ctx) error {
	if err := c.Registry.DeleteTemplate(ctx.UserContext(), ctx.Params("id")); err != nil {
		return writeError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// GetTemplate godoc
// @Summary Get a workflow template
// @Tags workflows
// @Router /api/workflows/{id} [get]
func (c *WorkflowController) GetTemplate(ctx *fiber.Ctx) error {
	template, err := c.Registry.GetTemplate(ctx.Params("id"))
	if err != nil {
		return writeError(ctx, err)
	}
	return ctx.JSON(template)
}

// ListTemplates godoc
// @Summary List workflow templates in evaluation order
// @Tags workflows
// @Router /api/workflows [get]
func (c *WorkflowController) ListTemplates(ctx *fiber.Ctx) error {
	return ctx.JSON(c.Registry.ListTemplates())
}

// MatchTemplate godoc
// @Summary Dry-run trigger matching for a document
// @Tags workflows
// @Router /api/workflows/match [post]
func (c *WorkflowController) MatchTemplate(ctx *fiber.Ctx) error {
	var body struct {
		DocumentType string         `json:"document_type"`
		DocumentData map[string]any `json:"document_data"`
	}
	if err := ctx.BodyParser(&body); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	template, ok := c.Registry.MatchTemplate(body.DocumentType, body.DocumentData)
	if !ok {
		return ctx.JSON(fiber.Map{"required": false})
	}
	return ctx.JSON(fiber.Map{"required": true, "template": template})
}

func writeError(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrInvalidTemplate):
		status = fiber.StatusBadRequest
	}
	return ctx.Status(status).JSON(fiber.Map{"error": err.Error()})
}
