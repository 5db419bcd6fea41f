package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/models"
	"github.com/kelechi-nwankpa/IELTSGo-sub001/internal/repositories"
)

const exportSheet = "Mock Tests"

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ExportResults renders the caller's test history as an XLSX workbook.
func (s *exportService) ExportResults(ctx context.Context, ownerID string, req *ListTestsRequest) ([]byte, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 500
	}

	tests, _, err := s.repo.MockTest().List(ctx, repositories.MockTestFilters{
		OwnerID:   &ownerID,
		Status:    req.Status,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Limit:     limit,
		Offset:    req.Offset,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tests for export: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close export workbook", "error", err)
		}
	}()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create export sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	header := []interface{}{
		"Test ID", "Variant", "Status",
		"Listening", "Reading", "Writing", "Speaking", "Overall",
		"Started", "Completed",
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}

	for i, test := range tests {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			test.ID,
			string(test.Variant),
			string(test.Status),
			bandCell(test.ListeningBand),
			bandCell(test.ReadingBand),
			bandCell(test.WritingBand),
			bandCell(test.SpeakingBand),
			bandCell(test.OverallBand),
			test.CreatedAt.Format("2006-01-02 15:04"),
			completedCell(test),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write export row: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func bandCell(band *float64) interface{} {
	if band == nil {
		return ""
	}
	return *band
}

func completedCell(test *models.MockTest) string {
	if test.CompletedAt == nil {
		return ""
	}
	return test.CompletedAt.Format("2006-01-02 15:04")
}
