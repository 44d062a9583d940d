package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/testbench/modules/execution/domain/execution"
)

const exportSheet = "Executions"

var exportHeader = []any{
	"Project", "Module", "Submodule", "Test Case", "Overall Result",
	"Passed Steps", "Failed Steps", "Blocked Steps", "Pending Steps", "Notes", "Completed At",
}

// Export writes the executions List would return as an .xlsx workbook.
func (s *ExecutionService) Export(ctx context.Context, userID uuid.UUID, w io.Writer) error {
	items, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	f, err := buildWorkbook(items)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func buildWorkbook(items []execution.WorkItem) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := exportRow(it)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func exportRow(it execution.WorkItem) []any {
	counts := map[execution.Result]int{}
	for _, s := range it.Steps {
		counts[s.Result]++
	}
	completedAt := ""
	if it.CompletedAt != nil {
		completedAt = it.CompletedAt.Format(time.RFC3339)
	}
	return []any{
		it.ProjectName,
		it.ModuleName,
		it.SubmoduleName,
		it.TestCaseTitle,
		string(it.Overall),
		counts[execution.ResultPassed],
		counts[execution.ResultFailed],
		counts[execution.ResultBlocked],
		counts[execution.ResultPending],
		it.Notes,
		completedAt,
	}
}
