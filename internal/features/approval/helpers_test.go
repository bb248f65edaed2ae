package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-approvals/internal/common/clock"
	"go-approvals/internal/features/audit"
	"go-approvals/internal/features/workflow"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func (n *recordingNotifier) Kinds() []EventKind {
	var kinds []EventKind
	for _, e := range n.Events() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type recordingTaskSink struct {
	mu        sync.Mutex
	followUps []FollowUp
	err       error
}

func (s *recordingTaskSink) CreateFollowUp(_ context.Context, _ Request, followUp FollowUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followUps = append(s.followUps, followUp)
	return s.err
}

func (s *recordingTaskSink) FollowUps() []FollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FollowUp(nil), s.followUps...)
}

// flakyRepo fails every Save while failSaves is set
type flakyRepo struct {
	RequestRepository
	mu        sync.Mutex
	failSaves bool
}

var errDiskFull = errors.New("disk full")

func (r *flakyRepo) setFailing(v bool) {
	r.mu.Lock()
	r.failSaves = v
	r.mu.Unlock()
}

func (r *flakyRepo) Save(ctx context.Context, request Request) error {
	r.mu.Lock()
	fail := r.failSaves
	r.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return r.RequestRepository.Save(ctx, request)
}

type fixture struct {
	clock    *clock.Manual
	repo     *flakyRepo
	notifier *recordingNotifier
	tasks    *recordingTaskSink
	audit    audit.AuditService
	registry workflow.TemplateRegistry
	factory  RequestFactory
	engine   ApprovalEngine
}

func amount(v float64) *float64 { return &v }

// quoteTemplate has two gates and fires at amount >= 5000
func quoteTemplate() workflow.Template {
	return workflow.Template{
		ID:      "angebot_freigabe",
		Name:    "Angebot Freigabe",
		Trigger: workflow.TriggerDefinition{Type: workflow.TriggerAmount, Threshold: amount(5000)},
		Steps: []workflow.StepDefinition{
			{ID: "step1", Role: "projektleiter", Name: "Projektleiter", TimeoutHours: 24},
			{ID: "step2", Role: "geschaeftsfuehrer", Name: "Geschäftsführer", TimeoutHours: 48},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		clock:    clock.NewManual(t0),
		repo:     &flakyRepo{RequestRepository: NewMemoryRequestRepository()},
		notifier: &recordingNotifier{},
		tasks:    &recordingTaskSink{},
		audit:    audit.NewAuditService(audit.NewMemoryAuditRepository()),
	}
	f.registry = workflow.NewTemplateRegistry(workflow.NewMemoryTemplateRepository(), f.clock, f.audit, logger)
	_, err := f.registry.AddTemplate(context.Background(), quoteTemplate())
	require.NoError(t, err)

	f.factory = NewRequestFactory(f.repo, f.registry, f.notifier, f.audit, f.clock, logger)
	f.engine = NewApprovalEngine(f.repo, f.notifier, f.tasks, f.audit, f.clock, logger)
	return f
}

// newQuote opens a request for a quote of 6000 and fails the test otherwise
func (f *fixture) newQuote(t *testing.T, documentID string) *Request {
	t.Helper()
	result, err := f.factory.CreateRequest(context.Background(), "angebot", documentID, map[string]any{"amount": 6000, "requestedBy": "anna"}, "")
	require.NoError(t, err)
	require.True(t, result.Required)
	return result.Request
}
