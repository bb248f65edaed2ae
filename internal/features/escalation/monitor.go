package escalation

import (
	"context"
	"fmt"
	"time"

	"go-approvals/internal/features/approval"

	"go.uber.org/zap"
)

type EscalationMonitor interface {
	// CheckTimeouts escalates every pending step that has waited at least its
	// timeout at now and returns the ids of the requests it escalated. A
	// request that fails is logged and skipped.
	CheckTimeouts(ctx context.Context, now time.Time) ([]string, error)
}

type EscalationMonitorImpl struct {
	Engine approval.ApprovalEngine
	Logger *zap.Logger
}

func NewEscalationMonitor(engine approval.ApprovalEngine, logger *zap.Logger) EscalationMonitor {
	return &EscalationMonitorImpl{
		Engine: engine,
		Logger: logger.Named("escalation"),
	}
}

func (m *EscalationMonitorImpl) CheckTimeouts(ctx context.Context, now time.Time) ([]string, error) {
	open, err := m.Engine.GetAllPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	escalated := []string{}
	for i := range open {
		req := &open[i]
		if req.Status != approval.StatusPending {
			continue
		}
		step, ok := req.ActiveStep()
		if !ok || step.Status != approval.StepPending {
			continue
		}

		elapsed := now.Sub(req.ActiveSince()).Hours()
		if elapsed < step.TimeoutHours {
			continue
		}

		_, done, err := m.Engine.EscalateStep(ctx, req.ID, step.Index)
		if err != nil {
			m.Logger.Error("Failed to escalate request",
				zap.String("request_id", req.ID),
				zap.Int("step_index", step.Index),
				zap.Error(err),
			)
			continue
		}
		if done {
			m.Logger.Info("Request overdue",
				zap.String("request_id", req.ID),
				zap.String("role", step.Role),
				zap.Float64("elapsed_hours", elapsed),
				zap.Float64("timeout_hours", step.TimeoutHours),
			)
			escalated = append(escalated, req.ID)
		}
	}
	return escalated, nil
}
