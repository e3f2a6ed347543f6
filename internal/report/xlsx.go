package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"speedcam-service/internal/domain/traffic"
)

const violationsSheet = "Violations"

// BuildViolationsWorkbook renders a violation list as an XLSX workbook for
// the export endpoint. The caller owns closing the returned file.
func BuildViolationsWorkbook(violations []traffic.Violation) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(violationsSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []string{"ID", "License Plate", "Message", "OCR Confidence", "Snapshot URL", "Recorded At"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(violationsSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for row, v := range violations {
		values := []interface{}{
			v.ID.String(),
			v.LicensePlate,
			v.Message,
			"",
			"",
			v.RecordedAt.Format("2006-01-02 15:04:05"),
		}
		if v.OCRConfidence != nil {
			values[3] = *v.OCRConfidence
		}
		if v.SnapshotURL != nil {
			values[4] = *v.SnapshotURL
		}

		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(violationsSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row+1, err)
			}
		}
	}

	return f, nil
}
