package task

import "time"

type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// Task is a follow-up raised for a fully approved request
type Task struct {
	ID          string     `bson:"_id" json:"id"`
	RequestID   string     `bson:"request_id" json:"request_id"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description" json:"description"`
	Priority    string     `bson:"priority" json:"priority"`
	Source      string     `bson:"source" json:"source"`
	Status      TaskStatus `bson:"status" json:"status"`
	DueDate     time.Time  `bson:"due_date" json:"due_date"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}
