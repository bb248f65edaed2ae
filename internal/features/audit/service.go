package audit

import (
	"context"
	"time"

	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/middleware"

	"github.com/google/uuid"
)

// Filter narrows ListLogs; empty fields match everything
type Filter struct {
	Module   string
	RecordID string
	Action   common_models.AuditAction
}

func (f Filter) matches(log common_models.AuditLog) bool {
	return (f.Module == "" || log.Module == f.Module) &&
		(f.RecordID == "" || log.RecordID == f.RecordID) &&
		(f.Action == "" || log.Action == f.Action)
}

type AuditService interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error
	ListLogs(ctx context.Context, filter Filter, page, limit int64) ([]common_models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo AuditRepository
}

func NewAuditService(repo AuditRepository) AuditService {
	return &AuditServiceImpl{
		Repo: repo,
	}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	// Extract Actor from Context
	actorID := "system"
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		actorID = claims.UserID
	}

	log := common_models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   actorID,
		Changes:   changes,
		Timestamp: time.Now().UTC(),
	}
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok {
		log.TenantID = tenantID
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, filter Filter, page, limit int64) ([]common_models.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit
	return s.Repo.List(ctx, filter, limit, offset)
}
