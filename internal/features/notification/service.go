package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go-approvals/internal/common/clock"
	"go-approvals/internal/config"
	"go-approvals/internal/features/approval"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationService interface {
	approval.Notifier
	List(ctx context.Context, audience string, page, limit int64) ([]Notification, int64, error)
	MarkAsRead(ctx context.Context, id string) error
}

type NotificationServiceImpl struct {
	Repo               NotificationRepository
	Hub                *Hub
	Clock              clock.Clock
	Logger             *zap.Logger
	EscalationAudience string
}

func NewNotificationService(repo NotificationRepository, hub *Hub, clk clock.Clock, cfg *config.Config, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		Repo:               repo,
		Hub:                hub,
		Clock:              clk,
		Logger:             logger.Named("notification"),
		EscalationAudience: cfg.EscalationAudience,
	}
}

// Notify stores the event in the inbox of its audience and pushes it to
// websocket clients. Failures are logged; the approval flow never sees them.
func (s *NotificationServiceImpl) Notify(ctx context.Context, event approval.Event) {
	n := s.compose(event)

	s.Logger.Info(n.Title,
		zap.String("event", n.Event),
		zap.String("audience", n.Audience),
		zap.String("request_id", n.RequestID),
	)

	if err := s.Repo.Create(ctx, n); err != nil {
		s.Logger.Error("Failed to store notification", zap.String("request_id", n.RequestID), zap.Error(err))
	}

	payload, err := json.Marshal(n)
	if err != nil {
		s.Logger.Error("Failed to encode notification", zap.Error(err))
		return
	}
	s.Hub.Broadcast(payload)
}

func (s *NotificationServiceImpl) compose(event approval.Event) Notification {
	req := event.Request
	subject := req.WorkflowName
	if subject == "" {
		subject = fmt.Sprintf("%s %s", req.DocumentType, req.DocumentID)
	}

	n := Notification{
		ID:        uuid.NewString(),
		Event:     string(event.Kind),
		RequestID: req.ID,
		Link:      "/api/approvals/" + req.ID,
		CreatedAt: event.OccurredAt,
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.Clock.Now()
	}
	if event.Step != nil {
		index := event.Step.Index
		n.StepIndex = &index
	}

	switch event.Kind {
	case approval.EventApproverNeeded:
		n.Type = NotificationTypeInfo
		n.Title = "Approval needed: " + subject
		if event.Step != nil {
			n.Audience = event.Step.Role
			n.Message = fmt.Sprintf("%s sign-off requested for document %s.", event.Step.Name, req.DocumentID)
		}
	case approval.EventRejected:
		n.Type = NotificationTypeError
		n.Title = "Approval rejected: " + subject
		n.Audience = req.RequestedBy
		n.Message = fmt.Sprintf("Document %s was rejected.", req.DocumentID)
		if event.Step != nil {
			n.Message = fmt.Sprintf("Document %s was rejected by %s at %s.", req.DocumentID, event.Step.Approver, event.Step.Name)
			if event.Step.Comment != "" {
				n.Message += " Comment: " + event.Step.Comment
			}
		}
	case approval.EventEscalated:
		n.Type = NotificationTypeWarning
		n.Title = "Escalation: approval overdue for " + subject
		n.Audience = s.EscalationAudience
		n.Message = fmt.Sprintf("Document %s has been waiting too long.", req.DocumentID)
		if event.Step != nil {
			n.Message = fmt.Sprintf("%s has not decided on document %s within %g hours.", event.Step.Name, req.DocumentID, event.Step.TimeoutHours)
		}
	}
	return n
}

func (s *NotificationServiceImpl) List(ctx context.Context, audience string, page, limit int64) ([]Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return s.Repo.FindByAudience(ctx, audience, limit, (page-1)*limit)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id string) error {
	return s.Repo.MarkAsRead(ctx, id, s.Clock.Now())
}
