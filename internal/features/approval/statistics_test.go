package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeStatistics(t *testing.T) {
	at := func(h float64) *time.Time {
		v := t0.Add(time.Duration(h * float64(time.Hour)))
		return &v
	}

	tests := []struct {
		name     string
		requests []Request
		want     Statistics
	}{
		{name: "empty", want: Statistics{}},
		{
			name: "only open requests",
			requests: []Request{
				{Status: StatusPending, CreatedAt: t0},
				{Status: StatusEscalated, CreatedAt: t0},
			},
			want: Statistics{Pending: 1, Escalated: 1, Total: 2},
		},
		{
			name: "mixed",
			requests: []Request{
				{Status: StatusApproved, CreatedAt: t0, CompletedAt: at(1)},
				{Status: StatusApproved, CreatedAt: t0, CompletedAt: at(2.25)},
				{Status: StatusApproved, CreatedAt: t0},
				{Status: StatusRejected, CreatedAt: t0, CompletedAt: at(4)},
				{Status: StatusPending, CreatedAt: t0},
			},
			want: Statistics{Pending: 1, Approved: 3, Rejected: 1, Total: 5, AvgApprovalTimeHours: 1.6, ApprovalRate: 75},
		},
		{
			name: "rate rounds to one decimal",
			requests: []Request{
				{Status: StatusApproved, CreatedAt: t0, CompletedAt: at(1)},
				{Status: StatusRejected, CreatedAt: t0},
				{Status: StatusRejected, CreatedAt: t0},
			},
			want: Statistics{Approved: 1, Rejected: 2, Total: 3, AvgApprovalTimeHours: 1, ApprovalRate: 33.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStatistics(tt.requests))
		})
	}
}
