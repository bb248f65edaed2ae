package approval

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go-approvals/internal/common/clock"
	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/features/audit"

	"go.uber.org/zap"
)

type ApprovalEngine interface {
	Approve(ctx context.Context, id string, stepIndex int, approver, comment string) (*Request, error)
	Reject(ctx context.Context, id string, stepIndex int, approver, comment string) (*Request, error)

	// Escalate flags the active step of a pending request. The bool is false,
	// with a nil error, when the request is not in an escalatable state.
	Escalate(ctx context.Context, id string) (*Request, bool, error)
	// EscalateStep escalates only if stepIndex is still the active pending step
	EscalateStep(ctx context.Context, id string, stepIndex int) (*Request, bool, error)

	GetRequest(ctx context.Context, id string) (*Request, error)
	GetRequestsByDocument(ctx context.Context, documentID string) ([]Request, error)
	GetPendingForRole(ctx context.Context, role string) ([]Request, error)
	GetAllPending(ctx context.Context) ([]Request, error)
	ListRequests(ctx context.Context) ([]Request, error)
	GetStatistics(ctx context.Context) (*Statistics, error)

	// CanAct reports whether any of roles is the role bound to the step
	CanAct(ctx context.Context, id string, stepIndex int, roles []string) (bool, error)
}

type ApprovalEngineImpl struct {
	Repo         RequestRepository
	Notifier     Notifier
	TaskSink     TaskSink
	AuditService audit.AuditService
	Clock        clock.Clock
	Logger       *zap.Logger

	locks *keyedMutex
}

func NewApprovalEngine(
	repo RequestRepository,
	notifier Notifier,
	taskSink TaskSink,
	auditService audit.AuditService,
	clk clock.Clock,
	logger *zap.Logger,
) ApprovalEngine {
	return &ApprovalEngineImpl{
		Repo:         repo,
		Notifier:     notifier,
		TaskSink:     taskSink,
		AuditService: auditService,
		Clock:        clk,
		Logger:       logger.Named("approval.engine"),
		locks:        newKeyedMutex(),
	}
}

func (e *ApprovalEngineImpl) Approve(ctx context.Context, id string, stepIndex int, approver, comment string) (*Request, error) {
	req, err := e.transition(ctx, id, func(req *Request, now time.Time) error {
		if err := checkActive(req, stepIndex); err != nil {
			return err
		}
		step := &req.Steps[stepIndex]
		step.Status = StepApproved
		step.Approver = approver
		step.ApprovedAt = &now
		step.Comment = comment

		if next := stepIndex + 1; next < len(req.Steps) {
			req.CurrentStepIndex = next
			req.Steps[next].Status = StepPending
		} else {
			req.CompletedAt = &now
		}
		return nil
	}, func(req *Request) {
		e.audit(ctx, common_models.AuditActionApproval, req.ID, map[string]common_models.Change{
			"step":   {New: stepIndex},
			"status": {New: req.Status},
		})
	})
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Step approved",
		zap.String("request_id", req.ID),
		zap.Int("step_index", stepIndex),
		zap.String("approver", approver),
		zap.String("status", string(req.Status)),
	)

	if req.Status == StatusApproved {
		e.createFollowUp(ctx, *req)
	} else {
		next := req.Steps[req.CurrentStepIndex]
		e.Notifier.Notify(ctx, Event{Kind: EventApproverNeeded, Request: req.Clone(), Step: &next, OccurredAt: req.UpdatedAt})
	}

	return req, nil
}

func (e *ApprovalEngineImpl) Reject(ctx context.Context, id string, stepIndex int, approver, comment string) (*Request, error) {
	req, err := e.transition(ctx, id, func(req *Request, now time.Time) error {
		if err := checkActive(req, stepIndex); err != nil {
			return err
		}
		step := &req.Steps[stepIndex]
		step.Status = StepRejected
		step.Approver = approver
		step.RejectedAt = &now
		step.Comment = comment
		req.CompletedAt = &now
		return nil
	}, func(req *Request) {
		e.audit(ctx, common_models.AuditActionReject, req.ID, map[string]common_models.Change{
			"step":   {New: stepIndex},
			"status": {New: req.Status},
		})
	})
	if err != nil {
		return nil, err
	}
	e.Logger.Info("Step rejected",
		zap.String("request_id", req.ID),
		zap.Int("step_index", stepIndex),
		zap.String("approver", approver),
	)

	rejected := req.Steps[stepIndex]
	e.Notifier.Notify(ctx, Event{Kind: EventRejected, Request: req.Clone(), Step: &rejected, OccurredAt: req.UpdatedAt})

	return req, nil
}

func (e *ApprovalEngineImpl) Escalate(ctx context.Context, id string) (*Request, bool, error) {
	return e.escalate(ctx, id, -1)
}

func (e *ApprovalEngineImpl) EscalateStep(ctx context.Context, id string, stepIndex int) (*Request, bool, error) {
	if stepIndex < 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrStepNotFound, stepIndex)
	}
	return e.escalate(ctx, id, stepIndex)
}

// escalate treats a negative stepIndex as "whichever step is active"
func (e *ApprovalEngineImpl) escalate(ctx context.Context, id string, stepIndex int) (*Request, bool, error) {
	req, escalatedIndex, err := e.escalateLocked(ctx, id, stepIndex)
	if err != nil || escalatedIndex < 0 {
		return req, false, err
	}
	e.Logger.Warn("Approval step escalated",
		zap.String("request_id", req.ID),
		zap.Int("step_index", escalatedIndex),
		zap.String("role", req.Steps[escalatedIndex].Role),
	)

	escalated := req.Steps[escalatedIndex]
	e.Notifier.Notify(ctx, Event{Kind: EventEscalated, Request: req.Clone(), Step: &escalated, OccurredAt: req.UpdatedAt})

	return req, true, nil
}

// escalateLocked returns the index of the escalated step, or -1 with the
// unchanged request when nothing was escalated.
func (e *ApprovalEngineImpl) escalateLocked(ctx context.Context, id string, stepIndex int) (*Request, int, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	current, err := e.Repo.Get(ctx, id)
	if err != nil {
		return nil, -1, err
	}
	step, active := current.ActiveStep()
	if current.Status != StatusPending || !active || step.Status != StepPending ||
		(stepIndex >= 0 && stepIndex != current.CurrentStepIndex) {
		return current, -1, nil
	}
	escalatedIndex := current.CurrentStepIndex

	req, err := e.mutate(ctx, id, func(req *Request, now time.Time) error {
		req.Steps[escalatedIndex].Status = StepEscalated
		req.EscalatedAt = &now
		return nil
	})
	if err != nil {
		return nil, -1, err
	}
	e.audit(ctx, common_models.AuditActionEscalate, req.ID, map[string]common_models.Change{
		"step":   {New: escalatedIndex},
		"status": {Old: StatusPending, New: req.Status},
	})
	return req, escalatedIndex, nil
}

func (e *ApprovalEngineImpl) GetRequest(ctx context.Context, id string) (*Request, error) {
	return e.Repo.Get(ctx, id)
}

func (e *ApprovalEngineImpl) GetRequestsByDocument(ctx context.Context, documentID string) ([]Request, error) {
	return e.Repo.List(ctx, Filter{DocumentID: documentID})
}

// GetPendingForRole returns open requests whose active step is bound to role.
// Escalated requests are still open and are included.
func (e *ApprovalEngineImpl) GetPendingForRole(ctx context.Context, role string) ([]Request, error) {
	open, err := e.GetAllPending(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(open, func(r Request) bool {
		step, ok := r.ActiveStep()
		return !ok || step.Role != role
	}), nil
}

func (e *ApprovalEngineImpl) GetAllPending(ctx context.Context) ([]Request, error) {
	return e.Repo.List(ctx, Filter{Statuses: []RequestStatus{StatusPending, StatusEscalated}})
}

func (e *ApprovalEngineImpl) ListRequests(ctx context.Context) ([]Request, error) {
	return e.Repo.List(ctx, Filter{})
}

func (e *ApprovalEngineImpl) GetStatistics(ctx context.Context) (*Statistics, error) {
	requests, err := e.Repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	stats := ComputeStatistics(requests)
	return &stats, nil
}

func (e *ApprovalEngineImpl) CanAct(ctx context.Context, id string, stepIndex int, roles []string) (bool, error) {
	req, err := e.Repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if stepIndex < 0 || stepIndex >= len(req.Steps) {
		return false, fmt.Errorf("%w: request %s has no step %d", ErrStepNotFound, id, stepIndex)
	}
	return slices.Contains(roles, req.Steps[stepIndex].Role), nil
}

// transition runs mutate and then audited under the request lock. The lock is
// released before returning, so notifications and follow-up tasks sent by the
// caller never hold up other decisions on the same request.
func (e *ApprovalEngineImpl) transition(ctx context.Context, id string, fn func(req *Request, now time.Time) error, audited func(req *Request)) (*Request, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	req, err := e.mutate(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	audited(req)
	return req, nil
}

// mutate loads the request, applies fn and saves the result. The caller holds
// the request lock. Nothing is stored when fn or validation fails.
func (e *ApprovalEngineImpl) mutate(ctx context.Context, id string, fn func(req *Request, now time.Time) error) (*Request, error) {
	req, err := e.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := e.Clock.Now()
	if err := fn(req, now); err != nil {
		return nil, err
	}
	req.UpdatedAt = now
	req.Status = req.DerivedStatus()
	if err := req.Consistent(); err != nil {
		return nil, err
	}

	if err := e.Repo.Save(ctx, *req); err != nil {
		return nil, fmt.Errorf("failed to save request %s: %w", id, err)
	}
	return req, nil
}

func (e *ApprovalEngineImpl) createFollowUp(ctx context.Context, req Request) {
	if e.TaskSink == nil {
		return
	}
	if err := e.TaskSink.CreateFollowUp(ctx, req.Clone(), DefaultFollowUp(req)); err != nil {
		e.Logger.Error("Failed to create follow-up task", zap.String("request_id", req.ID), zap.Error(err))
	}
}

func (e *ApprovalEngineImpl) audit(ctx context.Context, action common_models.AuditAction, id string, changes map[string]common_models.Change) {
	if err := e.AuditService.LogChange(ctx, action, collectionName, id, changes); err != nil {
		e.Logger.Warn("Failed to write audit entry", zap.String("request_id", id), zap.Error(err))
	}
}

// DefaultFollowUp is the task raised for a fully approved request, due the
// day of the final approval.
func DefaultFollowUp(req Request) FollowUp {
	completed := req.UpdatedAt
	if req.CompletedAt != nil {
		completed = *req.CompletedAt
	}
	y, m, d := completed.Date()
	return FollowUp{
		RequestID:   req.ID,
		Title:       "Approval granted: " + req.WorkflowName,
		Description: fmt.Sprintf("Document %s was approved. Carry out the next steps.", req.DocumentID),
		Priority:    "high",
		Source:      "approval",
		DueDate:     time.Date(y, m, d, 0, 0, 0, 0, completed.Location()),
	}
}

func checkActive(req *Request, stepIndex int) error {
	if stepIndex < 0 || stepIndex >= len(req.Steps) {
		return fmt.Errorf("%w: request %s has no step %d", ErrStepNotFound, req.ID, stepIndex)
	}
	if req.Status.IsTerminal() || stepIndex != req.CurrentStepIndex || !req.Steps[stepIndex].Status.IsActive() {
		return fmt.Errorf("%w: step %d of request %s is %s", ErrStepNotPending, stepIndex, req.ID, req.Steps[stepIndex].Status)
	}
	return nil
}
