package notification

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// Notification is one inbox entry. Audience is a role name, a requester
// identity or the configured escalation audience.
type Notification struct {
	ID        string           `bson:"_id" json:"id"`
	Audience  string           `bson:"audience" json:"audience"`
	Event     string           `bson:"event" json:"event"`
	Type      NotificationType `bson:"type" json:"type"`
	Title     string           `bson:"title" json:"title"`
	Message   string           `bson:"message" json:"message"`
	RequestID string           `bson:"request_id" json:"request_id"`
	StepIndex *int             `bson:"step_index,omitempty" json:"step_index,omitempty"`
	Link      string           `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool             `bson:"is_read" json:"is_read"`
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
	ReadAt    *time.Time       `bson:"read_at,omitempty" json:"read_at,omitempty"`
}
