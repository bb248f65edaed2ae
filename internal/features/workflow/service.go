package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go-approvals/internal/common/clock"
	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/features/audit"
	"go-approvals/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TemplateRegistry interface {
	// Load replaces the in-memory catalog with the stored one. When storage is
	// empty and seedDefaults is set, DefaultTemplates are registered.
	Load(ctx context.Context, seedDefaults bool) error

	// MatchTemplate returns the first template, in registration order, that
	// applies to documentType and whose trigger fires on data.
	MatchTemplate(documentType string, data map[string]any) (*Template, bool)

	AddTemplate(ctx context.Context, template Template) (*Template, error)
	UpdateTemplate(ctx context.Context, id string, template Template) (*Template, error)
	DeleteTemplate(ctx context.Context, id string) error
	GetTemplate(id string) (*Template, error)
	ListTemplates() []Template
}

type registered struct {
	template Template
	trigger  Trigger
}

type TemplateRegistryImpl struct {
	Repo         TemplateRepository
	Clock        clock.Clock
	AuditService audit.AuditService
	Logger       *zap.Logger

	mu        sync.RWMutex
	templates []registered
	sequence  int64
}

func NewTemplateRegistry(repo TemplateRepository, clk clock.Clock, auditService audit.AuditService, logger *zap.Logger) TemplateRegistry {
	return &TemplateRegistryImpl{
		Repo:         repo,
		Clock:        clk,
		AuditService: auditService,
		Logger:       logger.Named("workflow"),
	}
}

func (r *TemplateRegistryImpl) Load(ctx context.Context, seedDefaults bool) error {
	stored, err := r.Repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	r.mu.Lock()
	r.templates = r.templates[:0]
	r.sequence = 0
	for _, t := range stored {
		trigger, err := t.Trigger.Compile()
		if err != nil {
			r.Logger.Warn("Skipping stored template with a malformed trigger", zap.String("template_id", t.ID), zap.Error(err))
			continue
		}
		r.templates = append(r.templates, registered{template: t, trigger: trigger})
		r.sequence = max(r.sequence, t.Sequence)
	}
	empty := len(r.templates) == 0
	r.mu.Unlock()

	if empty && seedDefaults {
		for _, t := range DefaultTemplates() {
			if _, err := r.AddTemplate(ctx, t); err != nil {
				return fmt.Errorf("failed to seed template %s: %w", t.ID, err)
			}
		}
		r.Logger.Info("Seeded default workflow templates", zap.Int("count", len(DefaultTemplates())))
	}
	return nil
}

func (r *TemplateRegistryImpl) MatchTemplate(documentType string, data map[string]any) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.templates {
		if entry.template.appliesTo(documentType) && entry.trigger.Fires(data) {
			t := entry.template.Clone()
			return &t, true
		}
	}
	return nil, false
}

func (r *TemplateRegistryImpl) AddTemplate(ctx context.Context, template Template) (*Template, error) {
	trigger, err := validate(template)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if template.ID == "" {
		template.ID = newTemplateID(template.Name)
	}
	if r.indexOf(template.ID) >= 0 {
		return nil, fmt.Errorf("%w: template %s already exists", ErrInvalidTemplate, template.ID)
	}

	now := r.Clock.Now()
	template = template.Clone()
	template.Sequence = r.sequence + 1
	template.CreatedAt = now
	template.UpdatedAt = now

	if err := r.Repo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	r.sequence = template.Sequence
	r.templates = append(r.templates, registered{template: template, trigger: trigger})

	r.audit(ctx, common_models.AuditActionCreate, template.ID, map[string]common_models.Change{
		"template": {New: template.Name},
	})

	saved := template.Clone()
	return &saved, nil
}

// UpdateTemplate replaces a template in place. Requests already created keep
// the step copies they were built with.
func (r *TemplateRegistryImpl) UpdateTemplate(ctx context.Context, id string, template Template) (*Template, error) {
	trigger, err := validate(template)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	old := r.templates[idx].template

	template = template.Clone()
	template.ID = id
	template.Sequence = old.Sequence
	template.CreatedAt = old.CreatedAt
	template.UpdatedAt = r.Clock.Now()

	if err := r.Repo.Save(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	r.templates[idx] = registered{template: template, trigger: trigger}

	r.audit(ctx, common_models.AuditActionUpdate, id, map[string]common_models.Change{
		"trigger": {Old: old.Trigger, New: template.Trigger},
		"steps":   {Old: len(old.Steps), New: len(template.Steps)},
	})

	saved := template.Clone()
	return &saved, nil
}

func (r *TemplateRegistryImpl) DeleteTemplate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err := r.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	r.templates = append(r.templates[:idx], r.templates[idx+1:]...)

	r.audit(ctx, common_models.AuditActionDelete, id, nil)
	return nil
}

func (r *TemplateRegistryImpl) GetTemplate(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	t := r.templates[idx].template.Clone()
	return &t, nil
}

func (r *TemplateRegistryImpl) ListTemplates() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]Template, 0, len(r.templates))
	for _, entry := range r.templates {
		templates = append(templates, entry.template.Clone())
	}
	return templates
}

func (r *TemplateRegistryImpl) indexOf(id string) int {
	for i, entry := range r.templates {
		if entry.template.ID == id {
			return i
		}
	}
	return -1
}

func (r *TemplateRegistryImpl) audit(ctx context.Context, action common_models.AuditAction, id string, changes map[string]common_models.Change) {
	if err := r.AuditService.LogChange(ctx, action, collectionName, id, changes); err != nil {
		r.Logger.Warn("Failed to write audit entry", zap.String("template_id", id), zap.Error(err))
	}
}

func validate(template Template) (Trigger, error) {
	if len(template.Steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", ErrInvalidTemplate)
	}
	for i, step := range template.Steps {
		if strings.TrimSpace(step.Role) == "" {
			return nil, fmt.Errorf("%w: step %d has no role", ErrInvalidTemplate, i)
		}
		if step.TimeoutHours <= 0 {
			return nil, fmt.Errorf("%w: step %d needs a positive timeout", ErrInvalidTemplate, i)
		}
	}
	return template.Trigger.Compile()
}

func newTemplateID(name string) string {
	suffix := uuid.NewString()[:8]
	if slug := utils.Slugify(name); slug != "" {
		return "custom-" + slug + "-" + suffix
	}
	return "custom-" + suffix
}
