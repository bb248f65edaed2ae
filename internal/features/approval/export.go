package approval

import (
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	requestsSheet = "Requests"
	stepsSheet    = "Steps"
)

var (
	requestColumns = []string{"ID", "Workflow", "Document Type", "Document ID", "Status", "Current Step", "Requested By", "Created", "Completed", "Escalated"}
	stepColumns    = []string{"Request ID", "Index", "Name", "Role", "Timeout (h)", "Status", "Approver", "Decided", "Comment"}
)

// ExportToExcel renders requests as an xlsx workbook with one row per request
// on the first sheet and one row per step on the second.
func ExportToExcel(requests []Request) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", requestsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(stepsSheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	requestRows := make([][]any, 0, len(requests))
	var stepRows [][]any
	for _, r := range requests {
		current := ""
		if step, ok := r.ActiveStep(); ok {
			current = step.Name
		}
		requestRows = append(requestRows, []any{
			r.ID, r.WorkflowName, r.DocumentType, r.DocumentID, string(r.Status), current,
			r.RequestedBy, formatTime(&r.CreatedAt), formatTime(r.CompletedAt), formatTime(r.EscalatedAt),
		})
		for _, s := range r.Steps {
			decided := s.ApprovedAt
			if s.RejectedAt != nil {
				decided = s.RejectedAt
			}
			stepRows = append(stepRows, []any{
				r.ID, s.Index, s.Name, s.Role, s.TimeoutHours, string(s.Status), s.Approver, formatTime(decided), s.Comment,
			})
		}
	}

	if err := writeSheet(f, requestsSheet, requestColumns, requestRows, headerStyle); err != nil {
		return nil, err
	}
	if err := writeSheet(f, stepsSheet, stepColumns, stepRows, headerStyle); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, columns []string, rows [][]any, headerStyle int) error {
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	last, _ := excelize.ColumnNumberToName(len(columns))
	return f.SetColWidth(sheet, "A", last, 18)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// exportFilename builds the attachment name for an export taken at now
func exportFilename(now time.Time) string {
	return "approvals_" + now.UTC().Format("20060102_150405") + ".xlsx"
}
