package approval

import (
	"context"
	"fmt"
	"maps"
	"time"

	"go-approvals/internal/common/clock"
	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/features/audit"
	"go-approvals/internal/features/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateResult tells the caller whether the document needs sign-off at all
type CreateResult struct {
	Required bool     `json:"required"`
	Request  *Request `json:"request,omitempty"`
}

type RequestFactory interface {
	// CreateRequest builds and stores a request for the document. An empty
	// workflowID lets the registry pick the first matching template; a
	// document no template applies to needs no approval.
	CreateRequest(ctx context.Context, documentType, documentID string, data map[string]any, workflowID string) (*CreateResult, error)
}

type RequestFactoryImpl struct {
	Repo         RequestRepository
	Templates    TemplateSource
	Notifier     Notifier
	AuditService audit.AuditService
	Clock        clock.Clock
	Logger       *zap.Logger
}

func NewRequestFactory(
	repo RequestRepository,
	templates TemplateSource,
	notifier Notifier,
	auditService audit.AuditService,
	clk clock.Clock,
	logger *zap.Logger,
) RequestFactory {
	return &RequestFactoryImpl{
		Repo:         repo,
		Templates:    templates,
		Notifier:     notifier,
		AuditService: auditService,
		Clock:        clk,
		Logger:       logger.Named("approval.factory"),
	}
}

func (f *RequestFactoryImpl) CreateRequest(ctx context.Context, documentType, documentID string, data map[string]any, workflowID string) (*CreateResult, error) {
	var template *workflow.Template
	if workflowID != "" {
		t, err := f.Templates.GetTemplate(workflowID)
		if err != nil {
			return nil, err
		}
		template = t
	} else {
		t, ok := f.Templates.MatchTemplate(documentType, data)
		if !ok {
			f.Logger.Debug("No workflow applies", zap.String("document_type", documentType), zap.String("document_id", documentID))
			return &CreateResult{Required: false}, nil
		}
		template = t
	}

	request := buildRequest(template, documentType, documentID, data, f.Clock.Now())
	if err := request.Consistent(); err != nil {
		return nil, err
	}
	if err := f.Repo.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	if err := f.AuditService.LogChange(ctx, common_models.AuditActionCreate, collectionName, request.ID, map[string]common_models.Change{
		"status":   {New: request.Status},
		"workflow": {New: request.WorkflowID},
	}); err != nil {
		f.Logger.Warn("Failed to write audit entry", zap.String("request_id", request.ID), zap.Error(err))
	}

	f.Logger.Info("Approval request created",
		zap.String("request_id", request.ID),
		zap.String("workflow_id", request.WorkflowID),
		zap.String("document_id", documentID),
		zap.Int("steps", len(request.Steps)),
	)

	first := request.Steps[0]
	f.Notifier.Notify(ctx, Event{Kind: EventApproverNeeded, Request: request.Clone(), Step: &first, OccurredAt: request.CreatedAt})

	saved := request.Clone()
	return &CreateResult{Required: true, Request: &saved}, nil
}

func buildRequest(template *workflow.Template, documentType, documentID string, data map[string]any, now time.Time) Request {
	steps := make([]Step, len(template.Steps))
	for i, def := range template.Steps {
		id := def.ID
		if id == "" {
			id = fmt.Sprintf("step%d", i+1)
		}
		status := StepWaiting
		if i == 0 {
			status = StepPending
		}
		steps[i] = Step{
			ID:           id,
			Index:        i,
			Role:         def.Role,
			Name:         def.Name,
			TimeoutHours: def.TimeoutHours,
			Status:       status,
		}
	}

	snapshot := maps.Clone(data)
	if snapshot == nil {
		snapshot = map[string]any{}
	}

	return Request{
		ID:               "apr-" + uuid.NewString(),
		WorkflowID:       template.ID,
		WorkflowName:     template.Name,
		DocumentType:     documentType,
		DocumentID:       documentID,
		DocumentData:     snapshot,
		CurrentStepIndex: 0,
		Steps:            steps,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		RequestedBy:      requestedBy(data),
	}
}

func requestedBy(data map[string]any) string {
	for _, key := range []string{"requestedBy", "requested_by"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return "system"
}
