package approval

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	common_models "go-approvals/internal/common/models"
	"go-approvals/internal/features/audit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestApproveChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-1")

	f.clock.Advance(2 * time.Hour)
	req, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "ok")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 1, req.CurrentStepIndex)
	assert.Equal(t, StepApproved, req.Steps[0].Status)
	assert.Equal(t, "Maria", req.Steps[0].Approver)
	assert.Equal(t, "ok", req.Steps[0].Comment)
	assert.Equal(t, t0.Add(2*time.Hour), *req.Steps[0].ApprovedAt)
	assert.Equal(t, StepPending, req.Steps[1].Status)
	assert.Nil(t, req.CompletedAt)
	assert.Empty(t, f.tasks.FollowUps())

	events := f.notifier.Events()
	require.Len(t, events, 2)
	assert.Equal(t, EventApproverNeeded, events[1].Kind)
	assert.Equal(t, "geschaeftsfuehrer", events[1].Step.Role)

	f.clock.Advance(3 * time.Hour)
	req, err = f.engine.Approve(ctx, req.ID, 1, "Hans", "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	require.NotNil(t, req.CompletedAt)
	assert.Equal(t, t0.Add(5*time.Hour), *req.CompletedAt)
	assert.Equal(t, t0.Add(5*time.Hour), req.UpdatedAt)
	require.NoError(t, req.Consistent())

	followUps := f.tasks.FollowUps()
	require.Len(t, followUps, 1)
	assert.Equal(t, FollowUp{
		RequestID:   req.ID,
		Title:       "Approval granted: Angebot Freigabe",
		Description: "Document Q-1 was approved. Carry out the next steps.",
		Priority:    "high",
		Source:      "approval",
		DueDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}, followUps[0])
	assert.Len(t, f.notifier.Events(), 2, "final approval notifies nobody")

	stored, err := f.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req, stored)

	logs, err := f.audit.ListLogs(ctx, audit.Filter{RecordID: req.ID}, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, common_models.AuditActionApproval, logs[0].Action)
	assert.Equal(t, common_models.AuditActionCreate, logs[2].Action)
}

func TestRejectStopsChain(t *testing.T) {
	ctx := context.Background()

	t.Run("first step", func(t *testing.T) {
		f := newFixture(t)
		req := f.newQuote(t, "Q-2")

		req, err := f.engine.Reject(ctx, req.ID, 0, "Maria", "Budget exceeded")
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, req.Status)
		require.NotNil(t, req.CompletedAt)
		assert.Equal(t, StepRejected, req.Steps[0].Status)
		assert.Equal(t, "Budget exceeded", req.Steps[0].Comment)
		assert.Equal(t, t0, *req.Steps[0].RejectedAt)
		assert.Nil(t, req.Steps[0].ApprovedAt)
		assert.Equal(t, StepWaiting, req.Steps[1].Status)
		assert.Empty(t, f.tasks.FollowUps())

		events := f.notifier.Events()
		require.Len(t, events, 2)
		assert.Equal(t, EventRejected, events[1].Kind)
		assert.Equal(t, "anna", events[1].Request.RequestedBy)

		_, err = f.engine.Approve(ctx, req.ID, 1, "Hans", "")
		assert.ErrorIs(t, err, ErrStepNotPending)
		_, err = f.engine.Reject(ctx, req.ID, 0, "Maria", "again")
		assert.ErrorIs(t, err, ErrStepNotPending)
	})

	t.Run("last step", func(t *testing.T) {
		f := newFixture(t)
		req := f.newQuote(t, "Q-3")

		_, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "")
		require.NoError(t, err)
		req, err = f.engine.Reject(ctx, req.ID, 1, "Hans", "no")
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, req.Status)
		assert.Equal(t, StepApproved, req.Steps[0].Status)
		assert.Equal(t, StepRejected, req.Steps[1].Status)
		require.NoError(t, req.Consistent())
	})
}

func TestDecisionPreconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-4")

	tests := []struct {
		name      string
		id        string
		stepIndex int
		wantErr   error
	}{
		{name: "unknown request", id: "apr-missing", stepIndex: 0, wantErr: ErrRequestNotFound},
		{name: "negative index", id: req.ID, stepIndex: -1, wantErr: ErrStepNotFound},
		{name: "index past the end", id: req.ID, stepIndex: 2, wantErr: ErrStepNotFound},
		{name: "out of order", id: req.ID, stepIndex: 1, wantErr: ErrStepNotPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Approve(ctx, tt.id, tt.stepIndex, "Maria", "")
			assert.ErrorIs(t, err, tt.wantErr)
			_, err = f.engine.Reject(ctx, tt.id, tt.stepIndex, "Maria", "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := f.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, *req, *stored, "failed decisions leave the request untouched")
}

func TestDoubleApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-5")

	_, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "")
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, req.ID, 0, "Maria", "")
	assert.ErrorIs(t, err, ErrStepNotPending)
}

func TestConcurrentApprovalHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-6")

	const approvers = 16
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	for range approvers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "")
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, ErrStepNotPending):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(approvers-1), conflicts.Load())
	assert.Len(t, f.notifier.Events(), 2, "one creation and one hand-off")
}

func TestFailedSaveEmitsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-7")
	before := len(f.notifier.Events())

	f.repo.setFailing(true)
	_, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "")
	assert.ErrorIs(t, err, errDiskFull)
	_, err = f.engine.Reject(ctx, req.ID, 0, "Maria", "")
	assert.ErrorIs(t, err, errDiskFull)
	_, escalated, err := f.engine.Escalate(ctx, req.ID)
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, escalated)

	assert.Len(t, f.notifier.Events(), before)
	logs, err := f.audit.ListLogs(ctx, audit.Filter{RecordID: req.ID}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "only the creation is audited")

	f.repo.setFailing(false)
	stored, err := f.engine.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StepPending, stored.Steps[0].Status)
	_, err = f.engine.Approve(ctx, req.ID, 0, "Maria", "")
	assert.NoError(t, err)
}

func TestFollowUpFailureKeepsApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tasks.err = errDiskFull
	req := f.newQuote(t, "Q-8")

	_, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "")
	require.NoError(t, err)
	req, err = f.engine.Approve(ctx, req.ID, 1, "Hans", "")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	assert.Len(t, f.tasks.FollowUps(), 1)
}

// actingNotifier runs act for events of one kind, from inside Notify
type actingNotifier struct {
	kind EventKind
	act  func(ctx context.Context, event Event)
}

func (n *actingNotifier) Notify(ctx context.Context, event Event) {
	if event.Kind == n.kind {
		n.act(ctx, event)
	}
}

func TestNotifyRunsOutsideRequestLock(t *testing.T) {
	tests := []struct {
		name    string
		kind    EventKind
		trigger func(e ApprovalEngine, id string) error
		react   func(e ApprovalEngine, id string) error
		want    RequestStatus
	}{
		{
			name: "approver needed",
			kind: EventApproverNeeded,
			trigger: func(e ApprovalEngine, id string) error {
				_, err := e.Approve(context.Background(), id, 0, "Maria", "")
				return err
			},
			react: func(e ApprovalEngine, id string) error {
				_, _, err := e.Escalate(context.Background(), id)
				return err
			},
			want: StatusEscalated,
		},
		{
			name: "escalated",
			kind: EventEscalated,
			trigger: func(e ApprovalEngine, id string) error {
				_, _, err := e.Escalate(context.Background(), id)
				return err
			},
			react: func(e ApprovalEngine, id string) error {
				_, err := e.Reject(context.Background(), id, 0, "Maria", "too late")
				return err
			},
			want: StatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.newQuote(t, "Q-9")

			reacted := make(chan error, 1)
			notifier := &actingNotifier{kind: tt.kind}
			engine := NewApprovalEngine(f.repo, notifier, f.tasks, f.audit, f.clock, zaptest.NewLogger(t))
			notifier.act = func(ctx context.Context, event Event) {
				done := make(chan error, 1)
				go func() { done <- tt.react(engine, event.Request.ID) }()
				select {
				case err := <-done:
					reacted <- err
				case <-time.After(time.Second):
					reacted <- context.DeadlineExceeded
				}
			}

			require.NoError(t, tt.trigger(engine, req.ID))
			require.NoError(t, <-reacted)

			stored, err := engine.GetRequest(context.Background(), req.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
		})
	}
}

func TestEscalationIsAdvisory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-9")

	f.clock.Advance(25 * time.Hour)
	escalatedReq, escalated, err := f.engine.EscalateStep(ctx, req.ID, 0)
	require.NoError(t, err)
	assert.True(t, escalated)
	assert.Equal(t, StatusEscalated, escalatedReq.Status)
	assert.Equal(t, StepEscalated, escalatedReq.Steps[0].Status)
	assert.Equal(t, t0.Add(25*time.Hour), *escalatedReq.EscalatedAt)
	assert.Equal(t, EventEscalated, f.notifier.Events()[1].Kind)

	_, escalated, err = f.engine.Escalate(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, escalated, "already escalated")

	pending, err := f.engine.GetPendingForRole(ctx, "projektleiter")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	req, err = f.engine.Approve(ctx, req.ID, 0, "Maria", "late but fine")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, StepPending, req.Steps[1].Status)
	require.NoError(t, req.Consistent())
}

func TestEscalateStepIgnoresAdvancedRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-10")

	_, err := f.engine.Approve(ctx, req.ID, 0, "Maria", "")
	require.NoError(t, err)

	got, escalated, err := f.engine.EscalateStep(ctx, req.ID, 0)
	require.NoError(t, err)
	assert.False(t, escalated)
	assert.Equal(t, StepPending, got.Steps[1].Status)

	_, escalated, err = f.engine.EscalateStep(ctx, req.ID, 1)
	require.NoError(t, err)
	assert.True(t, escalated)

	_, _, err = f.engine.Escalate(ctx, "apr-missing")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestTerminalRequestsCannotEscalate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-11")

	_, err := f.engine.Reject(ctx, req.ID, 0, "Maria", "")
	require.NoError(t, err)
	got, escalated, err := f.engine.Escalate(ctx, req.ID)
	require.NoError(t, err)
	assert.False(t, escalated)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.newQuote(t, "Q-20")
	second := f.newQuote(t, "Q-21")
	third := f.newQuote(t, "Q-20")

	_, err := f.engine.Approve(ctx, second.ID, 0, "Maria", "")
	require.NoError(t, err)
	_, err = f.engine.Reject(ctx, third.ID, 0, "Maria", "")
	require.NoError(t, err)

	forLead, err := f.engine.GetPendingForRole(ctx, "projektleiter")
	require.NoError(t, err)
	require.Len(t, forLead, 1)
	assert.Equal(t, first.ID, forLead[0].ID)

	forCEO, err := f.engine.GetPendingForRole(ctx, "geschaeftsfuehrer")
	require.NoError(t, err)
	require.Len(t, forCEO, 1)
	assert.Equal(t, second.ID, forCEO[0].ID)

	all, err := f.engine.GetAllPending(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byDoc, err := f.engine.GetRequestsByDocument(ctx, "Q-20")
	require.NoError(t, err)
	require.Len(t, byDoc, 2)
	assert.Equal(t, first.ID, byDoc[0].ID)
	assert.Equal(t, third.ID, byDoc[1].ID)

	everything, err := f.engine.ListRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestCanAct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := f.newQuote(t, "Q-30")

	ok, err := f.engine.CanAct(ctx, req.ID, 0, []string{"vertrieb", "projektleiter"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.engine.CanAct(ctx, req.ID, 1, []string{"projektleiter"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.engine.CanAct(ctx, req.ID, 5, nil)
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestGetStatistics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	approved := f.newQuote(t, "Q-40")
	rejected := f.newQuote(t, "Q-41")
	f.newQuote(t, "Q-42")

	f.clock.Advance(90 * time.Minute)
	_, err := f.engine.Approve(ctx, approved.ID, 0, "Maria", "")
	require.NoError(t, err)
	_, err = f.engine.Approve(ctx, approved.ID, 1, "Hans", "")
	require.NoError(t, err)
	_, err = f.engine.Reject(ctx, rejected.ID, 0, "Maria", "")
	require.NoError(t, err)

	stats, err := f.engine.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Statistics{
		Pending:              1,
		Approved:             1,
		Rejected:             1,
		Total:                3,
		AvgApprovalTimeHours: 1.5,
		ApprovalRate:         50,
	}, stats)
}
