package task

import (
	"context"
	"fmt"
	"os"

	"go-approvals/internal/common/clock"
	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/config"
	"go-approvals/internal/features/approval"
	"go-approvals/internal/features/audit"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskService interface {
	approval.TaskSink
	ListTasks(ctx context.Context, requestID string) ([]Task, error)
}

type TaskServiceImpl struct {
	Repo         TaskRepository
	Script       *CompletionScript
	AuditService audit.AuditService
	Clock        clock.Clock
	Logger       *zap.Logger
}

func NewTaskService(repo TaskRepository, script *CompletionScript, auditService audit.AuditService, clk clock.Clock, logger *zap.Logger) TaskService {
	return &TaskServiceImpl{
		Repo:         repo,
		Script:       script,
		AuditService: auditService,
		Clock:        clk,
		Logger:       logger.Named("task"),
	}
}

// LoadCompletionScript reads COMPLETION_SCRIPT; no path means no script
func LoadCompletionScript(cfg *config.Config) (*CompletionScript, error) {
	if cfg.CompletionScript == "" {
		return nil, nil
	}
	source, err := os.ReadFile(cfg.CompletionScript)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion script: %w", err)
	}
	return NewCompletionScript(source)
}

// CreateFollowUp stores the follow-up task. A failing script is logged and
// the unmodified follow-up is used.
func (s *TaskServiceImpl) CreateFollowUp(ctx context.Context, request approval.Request, followUp approval.FollowUp) error {
	if s.Script != nil {
		customized, err := s.Script.Apply(ctx, request, followUp)
		if err != nil {
			s.Logger.Warn("Completion script failed, using the default follow-up", zap.String("request_id", request.ID), zap.Error(err))
		} else {
			followUp = customized
		}
	}

	task := Task{
		ID:          uuid.NewString(),
		RequestID:   followUp.RequestID,
		Title:       followUp.Title,
		Description: followUp.Description,
		Priority:    followUp.Priority,
		Source:      followUp.Source,
		Status:      TaskStatusOpen,
		DueDate:     followUp.DueDate,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Repo.Create(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.AuditService.LogChange(ctx, common_models.AuditActionCreate, collectionName, task.ID, map[string]common_models.Change{
		"request_id": {New: task.RequestID},
		"title":      {New: task.Title},
	}); err != nil {
		s.Logger.Warn("Failed to write audit entry", zap.String("task_id", task.ID), zap.Error(err))
	}

	s.Logger.Info("Follow-up task created", zap.String("task_id", task.ID), zap.String("request_id", task.RequestID))
	return nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, requestID string) ([]Task, error) {
	return s.Repo.List(ctx, requestID)
}
