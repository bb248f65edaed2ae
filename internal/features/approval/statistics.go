package approval

import "math"

type Statistics struct {
	Pending              int     `json:"pending"`
	Approved             int     `json:"approved"`
	Rejected             int     `json:"rejected"`
	Escalated            int     `json:"escalated"`
	Total                int     `json:"total"`
	AvgApprovalTimeHours float64 `json:"avg_approval_time_hours"`
	ApprovalRate         float64 `json:"approval_rate"`
}

// ComputeStatistics counts requests by status. The average covers approved
// requests with a completion time; the rate is approved out of decided, in percent.
func ComputeStatistics(requests []Request) Statistics {
	stats := Statistics{Total: len(requests)}

	var approvalHours float64
	var timed int
	for _, r := range requests {
		switch r.Status {
		case StatusPending:
			stats.Pending++
		case StatusApproved:
			stats.Approved++
			if r.CompletedAt != nil {
				approvalHours += r.CompletedAt.Sub(r.CreatedAt).Hours()
				timed++
			}
		case StatusRejected:
			stats.Rejected++
		case StatusEscalated:
			stats.Escalated++
		}
	}

	if timed > 0 {
		stats.AvgApprovalTimeHours = roundTenth(approvalHours / float64(timed))
	}
	if decided := stats.Approved + stats.Rejected; decided > 0 {
		stats.ApprovalRate = roundTenth(float64(stats.Approved) / float64(decided) * 100)
	}
	return stats
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
