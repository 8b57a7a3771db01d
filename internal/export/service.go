// Package export produces XLSX workbooks summarizing a user's run history.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/entity"
	"github.com/aspor-platform/docintake/internal/repository"
)

// Service is a tiny façade over the run repository that renders run history
// as an XLSX workbook.
type Service struct {
	repo   repository.RunRepository
	logger *slog.Logger
}

func NewService(repo repository.RunRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportRunsXLSX returns a workbook of the owner's runs, most recent first,
// capped at maxRows (0 means 1000).
func (s *Service) ExportRunsXLSX(ctx context.Context, ownerID string, maxRows int) ([]byte, error) {
	start := time.Now()
	ownerID = common.SanitizeUserID(ownerID)
	if maxRows <= 0 {
		maxRows = 1000
	}

	var runs []*entity.Run
	cursor := ""
	for len(runs) < maxRows {
		page, err := s.repo.List(ctx, ownerID, repository.MaxPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("query runs: %w", err)
		}
		runs = append(runs, page.Runs...)
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if len(runs) > maxRows {
		runs = runs[:maxRows]
	}

	f := excelize.NewFile()
	const sheet = "Runs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Run ID", "Model", "Status", "Started At", "Ended At", "Files", "Format", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for rowIdx, run := range runs {
		endedAt := ""
		if run.EndedAt != nil {
			endedAt = run.EndedAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			run.ID,
			string(run.Model),
			string(run.Status),
			run.StartedAt.UTC().Format(time.RFC3339),
			endedAt,
			joinNames(run.FileNames),
			string(run.OutputFormat),
			run.ErrorDetail,
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	// Drop the default sheet excelize creates.
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.runs.ok",
		"owner_id", ownerID,
		"rows", len(runs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
