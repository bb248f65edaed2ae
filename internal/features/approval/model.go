package approval

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusEscalated RequestStatus = "escalated"
)

// IsTerminal reports whether no further transition is possible
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type StepStatus string

const (
	StepWaiting   StepStatus = "waiting"
	StepPending   StepStatus = "pending"
	StepApproved  StepStatus = "approved"
	StepRejected  StepStatus = "rejected"
	StepEscalated StepStatus = "escalated"
)

// IsActive reports whether the step is the one awaiting a decision
func (s StepStatus) IsActive() bool {
	return s == StepPending || s == StepEscalated
}

// Step is a materialized copy of a template step plus its decision
type Step struct {
	ID           string     `bson:"id,omitempty" json:"id,omitempty"`
	Index        int        `bson:"index" json:"index"`
	Role         string     `bson:"role" json:"role"`
	Name         string     `bson:"name" json:"name"`
	TimeoutHours float64    `bson:"timeout_hours" json:"timeout_hours"`
	Status       StepStatus `bson:"status" json:"status"`
	Approver     string     `bson:"approver,omitempty" json:"approver,omitempty"`
	ApprovedAt   *time.Time `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectedAt   *time.Time `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	Comment      string     `bson:"comment,omitempty" json:"comment,omitempty"`
}

// Request is one document travelling through the gates of a workflow
type Request struct {
	ID               string         `bson:"_id" json:"id"`
	WorkflowID       string         `bson:"workflow_id" json:"workflow_id"`
	WorkflowName     string         `bson:"workflow_name" json:"workflow_name"`
	DocumentType     string         `bson:"document_type" json:"document_type"`
	DocumentID       string         `bson:"document_id" json:"document_id"`
	DocumentData     map[string]any `bson:"document_data" json:"document_data"`
	CurrentStepIndex int            `bson:"current_step_index" json:"current_step_index"`
	Steps            []Step         `bson:"steps" json:"steps"`
	Status           RequestStatus  `bson:"status" json:"status"`
	CreatedAt        time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `bson:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	EscalatedAt      *time.Time     `bson:"escalated_at,omitempty" json:"escalated_at,omitempty"`
	RequestedBy      string         `bson:"requested_by" json:"requested_by"`
}

func (r Request) Clone() Request {
	c := r
	c.DocumentData = maps.Clone(r.DocumentData)
	c.Steps = slices.Clone(r.Steps)
	c.CompletedAt = clonePtr(r.CompletedAt)
	c.EscalatedAt = clonePtr(r.EscalatedAt)
	for i := range c.Steps {
		c.Steps[i].ApprovedAt = clonePtr(r.Steps[i].ApprovedAt)
		c.Steps[i].RejectedAt = clonePtr(r.Steps[i].RejectedAt)
	}
	return c
}

// ActiveStep returns the step awaiting a decision, if any
func (r *Request) ActiveStep() (*Step, bool) {
	if r.CurrentStepIndex < 0 || r.CurrentStepIndex >= len(r.Steps) {
		return nil, false
	}
	step := &r.Steps[r.CurrentStepIndex]
	return step, step.Status.IsActive()
}

// ActiveSince is when the active step started waiting: the previous step's
// approval, or the creation time for the first step.
func (r *Request) ActiveSince() time.Time {
	if r.CurrentStepIndex > 0 {
		if prev := r.Steps[r.CurrentStepIndex-1].ApprovedAt; prev != nil {
			return *prev
		}
	}
	return r.CreatedAt
}

// DerivedStatus computes the overall status from the step statuses alone
func (r *Request) DerivedStatus() RequestStatus {
	allApproved := true
	escalated := false
	for _, step := range r.Steps {
		switch step.Status {
		case StepRejected:
			return StatusRejected
		case StepApproved:
		case StepEscalated:
			escalated = true
			allApproved = false
		default:
			allApproved = false
		}
	}
	switch {
	case allApproved:
		return StatusApproved
	case escalated:
		return StatusEscalated
	default:
		return StatusPending
	}
}

var errInconsistent = errors.New("inconsistent request")

// Consistent checks the step ordering invariants: every step before the
// current one is approved, every step after it is waiting, and the overall
// status agrees with the step statuses.
func (r *Request) Consistent() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: no steps", errInconsistent)
	}
	if r.CurrentStepIndex < 0 || r.CurrentStepIndex >= len(r.Steps) {
		return fmt.Errorf("%w: current step %d out of range", errInconsistent, r.CurrentStepIndex)
	}
	for i, step := range r.Steps {
		if step.Index != i {
			return fmt.Errorf("%w: step %d carries index %d", errInconsistent, i, step.Index)
		}
		switch {
		case i < r.CurrentStepIndex && step.Status != StepApproved:
			return fmt.Errorf("%w: step %d before the current step is %s", errInconsistent, i, step.Status)
		case i > r.CurrentStepIndex && step.Status != StepWaiting:
			return fmt.Errorf("%w: step %d after the current step is %s", errInconsistent, i, step.Status)
		case i == r.CurrentStepIndex && step.Status == StepWaiting:
			return fmt.Errorf("%w: current step %d is waiting", errInconsistent, i)
		}
	}
	if r.Steps[r.CurrentStepIndex].Status == StepApproved && r.CurrentStepIndex != len(r.Steps)-1 {
		return fmt.Errorf("%w: approved step %d did not advance", errInconsistent, r.CurrentStepIndex)
	}
	if derived := r.DerivedStatus(); r.Status != derived {
		return fmt.Errorf("%w: status %s, steps say %s", errInconsistent, r.Status, derived)
	}
	if r.Status.IsTerminal() != (r.CompletedAt != nil) {
		return fmt.Errorf("%w: status %s with completed_at %v", errInconsistent, r.Status, r.CompletedAt)
	}
	return nil
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
