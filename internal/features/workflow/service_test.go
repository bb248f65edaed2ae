package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-approvals/internal/common/clock"
	"go-approvals/internal/features/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, repo TemplateRepository) *TemplateRegistryImpl {
	t.Helper()
	if repo == nil {
		repo = NewMemoryTemplateRepository()
	}
	return NewTemplateRegistry(repo, clock.NewManual(t0), audit.NewAuditService(audit.NewMemoryAuditRepository()), zaptest.NewLogger(t)).(*TemplateRegistryImpl)
}

func quoteTemplate() Template {
	return Template{
		Name:    "Angebot Freigabe",
		Trigger: TriggerDefinition{Type: TriggerAmount, Threshold: threshold(5000)},
		Steps: []StepDefinition{
			{Role: "projektleiter", Name: "Projektleiter", TimeoutHours: 24},
			{Role: "geschaeftsfuehrer", Name: "Geschäftsführer", TimeoutHours: 48},
		},
	}
}

func TestAddTemplate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	saved, err := reg.AddTemplate(ctx, quoteTemplate())
	require.NoError(t, err)
	assert.Regexp(t, `^custom-angebot-freigabe-[0-9a-f]{8}$`, saved.ID)
	assert.Equal(t, int64(1), saved.Sequence)
	assert.Equal(t, t0, saved.CreatedAt)

	explicit := quoteTemplate()
	explicit.ID = "angebot"
	saved, err = reg.AddTemplate(ctx, explicit)
	require.NoError(t, err)
	assert.Equal(t, "angebot", saved.ID)
	assert.Equal(t, int64(2), saved.Sequence)

	_, err = reg.AddTemplate(ctx, explicit)
	assert.ErrorIs(t, err, ErrInvalidTemplate, "duplicate id")

	stored, err := reg.Repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestAddTemplateRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	noSteps := quoteTemplate()
	noSteps.Steps = nil

	badTrigger := quoteTemplate()
	badTrigger.Trigger = TriggerDefinition{Type: "weekday"}

	noRole := quoteTemplate()
	noRole.Steps[1].Role = ""

	noTimeout := quoteTemplate()
	noTimeout.Steps[0].TimeoutHours = 0

	for name, tpl := range map[string]Template{
		"no steps":    noSteps,
		"bad trigger": badTrigger,
		"no role":     noRole,
		"no timeout":  noTimeout,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := reg.AddTemplate(ctx, tpl)
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
	assert.Empty(t, reg.ListTemplates())
}

func TestMatchTemplateFirstMatchInRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)
	require.NoError(t, reg.Load(ctx, true))

	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"large quote hits the 5000 template first", map[string]any{"amount": 6000}, "angebot_freigabe"},
		{"mid amount falls through to 1000 template", map[string]any{"betrag": 3000}, "ausgabe_freigabe"},
		{"discount", map[string]any{"rabatt": 20}, "rabatt_freigabe"},
		{"cancellation", map[string]any{"action": "storno"}, "rechnung_storno"},
		{"small document", map[string]any{"amount": 200, "discount": 5}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.MatchTemplate("angebot", tt.data)
			if tt.want == "" {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, got.ID)

			again, _ := reg.MatchTemplate("angebot", tt.data)
			assert.Equal(t, got, again, "matching is deterministic")
		})
	}
}

func TestMatchTemplateHonorsDocumentTypes(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)

	expense := quoteTemplate()
	expense.ID = "expense_only"
	expense.DocumentTypes = []string{"ausgabe"}
	_, err := reg.AddTemplate(ctx, expense)
	require.NoError(t, err)

	_, ok := reg.MatchTemplate("angebot", map[string]any{"amount": 9000})
	assert.False(t, ok)

	got, ok := reg.MatchTemplate("ausgabe", map[string]any{"amount": 9000})
	require.True(t, ok)
	assert.Equal(t, "expense_only", got.ID)
}

func TestReturnedTemplatesAreCopies(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)
	require.NoError(t, reg.Load(ctx, true))

	got, err := reg.GetTemplate("angebot_freigabe")
	require.NoError(t, err)
	got.Steps[0].Role = "hacked"
	*got.Trigger.Threshold = 1

	again, err := reg.GetTemplate("angebot_freigabe")
	require.NoError(t, err)
	assert.Equal(t, "projektleiter", again.Steps[0].Role)
	assert.Equal(t, 5000.0, *again.Trigger.Threshold)
}

func TestUpdateAndDeleteTemplate(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, nil)
	require.NoError(t, reg.Load(ctx, true))

	changed := quoteTemplate()
	changed.Trigger.Threshold = threshold(10000)
	updated, err := reg.UpdateTemplate(ctx, "angebot_freigabe", changed)
	require.NoError(t, err)
	assert.Equal(t, "angebot_freigabe", updated.ID)
	assert.Equal(t, int64(1), updated.Sequence, "keeps its position")

	got, ok := reg.MatchTemplate("angebot", map[string]any{"amount": 6000})
	require.True(t, ok)
	assert.Equal(t, "ausgabe_freigabe", got.ID)

	_, err = reg.UpdateTemplate(ctx, "missing", changed)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	require.NoError(t, reg.DeleteTemplate(ctx, "ausgabe_freigabe"))
	_, err = reg.GetTemplate("ausgabe_freigabe")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, reg.DeleteTemplate(ctx, "ausgabe_freigabe"), ErrTemplateNotFound)
}

func TestLoadRestoresOrderFromStorage(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTemplateRepository()

	first := newTestRegistry(t, repo)
	require.NoError(t, first.Load(ctx, true))
	custom, err := first.AddTemplate(ctx, quoteTemplate())
	require.NoError(t, err)

	second := newTestRegistry(t, repo)
	require.NoError(t, second.Load(ctx, true))

	ids := []string{}
	for _, tpl := range second.ListTemplates() {
		ids = append(ids, tpl.ID)
	}
	assert.Equal(t, []string{"angebot_freigabe", "ausgabe_freigabe", "rabatt_freigabe", "rechnung_storno", custom.ID}, ids)

	next, err := second.AddTemplate(ctx, quoteTemplate())
	require.NoError(t, err)
	assert.Equal(t, int64(6), next.Sequence)
}

type failingRepo struct{ TemplateRepository }

func (failingRepo) Save(context.Context, Template) error { return errors.New("disk full") }

func TestAddTemplateDoesNotRegisterOnSaveFailure(t *testing.T) {
	reg := newTestRegistry(t, failingRepo{NewMemoryTemplateRepository()})

	_, err := reg.AddTemplate(context.Background(), quoteTemplate())
	require.Error(t, err)
	assert.Empty(t, reg.ListTemplates())
}
