package models

import (
	"time"
)

type ContextKey string

const (
	TenantIDKey ContextKey = "tenant_id"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionApproval AuditAction = "APPROVAL"
	AuditActionReject   AuditAction = "REJECT"
	AuditActionEscalate AuditAction = "ESCALATE"
	AuditActionTemplate AuditAction = "TEMPLATE"
	AuditActionCron     AuditAction = "CRON"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        string            `bson:"_id" json:"id"`
	TenantID  string            `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Action    AuditAction       `bson:"action" json:"action"`
	Module    string            `bson:"module" json:"module"`                       // e.g. "approval_requests"
	RecordID  string            `bson:"record_id" json:"record_id"`                 // The ID of the record being modified
	ActorID   string            `bson:"actor_id" json:"actor_id"`                   // User who performed the action
	Changes   map[string]Change `bson:"changes,omitempty" json:"changes,omitempty"` // field -> {old, new}
	Timestamp time.Time         `bson:"timestamp" json:"timestamp"`
}

type Log struct {
	Message      string    `bson:"message" json:"message"`
	IpAddress    string    `bson:"ip_address" json:"ip_address"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	AppId        string    `bson:"app_id" json:"app_id"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
