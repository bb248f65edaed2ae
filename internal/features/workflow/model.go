package workflow

import (
	"slices"
	"time"
)

// Template is the blueprint for a class of documents: which documents need
// sign-off and the ordered gates they pass through.
type Template struct {
	ID            string            `bson:"_id" json:"id"`
	Name          string            `bson:"name" json:"name"`
	Description   string            `bson:"description" json:"description"`
	DocumentTypes []string          `bson:"document_types,omitempty" json:"document_types,omitempty"` // Empty matches any document type
	Trigger       TriggerDefinition `bson:"trigger" json:"trigger"`
	Steps         []StepDefinition  `bson:"steps" json:"steps"`
	Sequence      int64             `bson:"sequence" json:"sequence"` // Registration order
	CreatedAt     time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `bson:"updated_at" json:"updated_at"`
}

// StepDefinition is a single gate of a template
type StepDefinition struct {
	ID           string  `bson:"id,omitempty" json:"id,omitempty"`
	Role         string  `bson:"role" json:"role"`
	Name         string  `bson:"name" json:"name"`
	TimeoutHours float64 `bson:"timeout_hours" json:"timeout_hours"`
}

func (t Template) Clone() Template {
	c := t
	c.DocumentTypes = slices.Clone(t.DocumentTypes)
	c.Steps = slices.Clone(t.Steps)
	if t.Trigger.Threshold != nil {
		threshold := *t.Trigger.Threshold
		c.Trigger.Threshold = &threshold
	}
	return c
}

func (t Template) appliesTo(documentType string) bool {
	return len(t.DocumentTypes) == 0 || slices.Contains(t.DocumentTypes, documentType)
}
