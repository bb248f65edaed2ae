package approval

import (
	"context"
	"time"

	"go-approvals/internal/features/workflow"
)

type EventKind string

const (
	EventApproverNeeded EventKind = "approver_needed"
	EventRejected       EventKind = "rejected"
	EventEscalated      EventKind = "escalated"
)

// Event is emitted after the transition it describes has been saved
type Event struct {
	Kind       EventKind `json:"kind"`
	Request    Request   `json:"request"`
	Step       *Step     `json:"step,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier delivers events. Delivery is best effort: implementations handle
// their own failures and never report them back to the engine.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// FollowUp describes the task raised when a request is finally approved
type FollowUp struct {
	RequestID   string
	Title       string
	Description string
	Priority    string
	Source      string
	DueDate     time.Time
}

type TaskSink interface {
	CreateFollowUp(ctx context.Context, request Request, followUp FollowUp) error
}

// TemplateSource is the part of the template registry the factory needs
type TemplateSource interface {
	MatchTemplate(documentType string, data map[string]any) (*workflow.Template, bool)
	GetTemplate(id string) (*workflow.Template, error)
}
