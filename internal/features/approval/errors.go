package approval

import (
	"errors"

	"go-approvals/internal/features/workflow"
)

var (
	ErrRequestNotFound = errors.New("request not found")
	ErrStepNotFound    = errors.New("step not found")
	ErrStepNotPending  = errors.New("step not pending")
	ErrRoleNotAllowed  = errors.New("role not allowed to act on this step")

	ErrTemplateNotFound = workflow.ErrTemplateNotFound
	ErrInvalidTemplate  = workflow.ErrInvalidTemplate
)
