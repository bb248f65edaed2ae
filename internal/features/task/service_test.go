package task

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-approvals/internal/common/clock"
	"go-approvals/internal/config"
	"go-approvals/internal/features/approval"
	"go-approvals/internal/features/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func approvedRequest() (approval.Request, approval.FollowUp) {
	completed := t0.Add(5 * time.Hour)
	req := approval.Request{
		ID:           "apr-1",
		WorkflowID:   "angebot_freigabe",
		WorkflowName: "Angebot Freigabe",
		DocumentType: "angebot",
		DocumentID:   "Q-1",
		DocumentData: map[string]any{"amount": 12000, "customer": "Müller GmbH"},
		Steps: []approval.Step{
			{Index: 0, Role: "projektleiter", Status: approval.StepApproved, ApprovedAt: &completed},
		},
		Status:      approval.StatusApproved,
		CreatedAt:   t0,
		UpdatedAt:   completed,
		CompletedAt: &completed,
		RequestedBy: "anna",
	}
	return req, approval.DefaultFollowUp(req)
}

func newTestService(t *testing.T, script *CompletionScript) *TaskServiceImpl {
	t.Helper()
	svc := NewTaskService(NewMemoryTaskRepository(), script, audit.NewAuditService(audit.NewMemoryAuditRepository()), clock.NewManual(t0.Add(5*time.Hour)), zaptest.NewLogger(t))
	return svc.(*TaskServiceImpl)
}

func TestCreateFollowUp(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	req, followUp := approvedRequest()

	require.NoError(t, svc.CreateFollowUp(ctx, req, followUp))

	tasks, err := svc.ListTasks(ctx, "apr-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Approval granted: Angebot Freigabe", got.Title)
	assert.Equal(t, "Document Q-1 was approved. Carry out the next steps.", got.Description)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "approval", got.Source)
	assert.Equal(t, TaskStatusOpen, got.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), got.DueDate)

	none, err := svc.ListTasks(ctx, "apr-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCompletionScriptOverrides(t *testing.T) {
	ctx := context.Background()
	script, err := NewCompletionScript([]byte(`
fmt := import("fmt")
if request.document_data.amount >= 10000 {
	priority = "urgent"
}
title = fmt.sprintf("Order for %s", request.document_data.customer)
`))
	require.NoError(t, err)

	svc := newTestService(t, script)
	req, followUp := approvedRequest()
	require.NoError(t, svc.CreateFollowUp(ctx, req, followUp))

	tasks, err := svc.ListTasks(ctx, "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Order for Müller GmbH", tasks[0].Title)
	assert.Equal(t, "urgent", tasks[0].Priority)
	assert.Equal(t, followUp.Description, tasks[0].Description)
}

func TestCompletionScriptFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	script, err := NewCompletionScript([]byte(`title = request.document_data.amount + "x"`))
	require.NoError(t, err)

	svc := newTestService(t, script)
	req, followUp := approvedRequest()
	require.NoError(t, svc.CreateFollowUp(ctx, req, followUp))

	tasks, err := svc.ListTasks(ctx, "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, followUp.Title, tasks[0].Title)
}

func TestLoadCompletionScript(t *testing.T) {
	script, err := LoadCompletionScript(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, script)

	_, err = LoadCompletionScript(&config.Config{CompletionScript: filepath.Join(t.TempDir(), "missing.tengo")})
	assert.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.tengo")
	require.NoError(t, os.WriteFile(broken, []byte(`title = (`), 0o600))
	_, err = LoadCompletionScript(&config.Config{CompletionScript: broken})
	assert.Error(t, err)

	valid := filepath.Join(t.TempDir(), "valid.tengo")
	require.NoError(t, os.WriteFile(valid, []byte(`priority = "low"`), 0o600))
	script, err = LoadCompletionScript(&config.Config{CompletionScript: valid})
	require.NoError(t, err)
	assert.NotNil(t, script)
}
