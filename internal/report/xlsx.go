package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/guarzo/fbascout/internal/model"
)

const bulkSheet = "Bulk Analysis"

// WriteBulkXLSX writes items as a single-sheet workbook with the same
// columns as WriteBulkCSV and a bold header row. Numeric columns are stored
// as numbers.
func WriteBulkXLSX(w io.Writer, items []model.BulkItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), bulkSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(BulkColumns))
	for i, c := range BulkColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(bulkSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(BulkColumns), 1)
	if err := f.SetCellStyle(bulkSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, item := range items {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := xlsxRow(BulkRow(item))
		if err := f.SetSheetRow(bulkSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(bulkSheet, "C", "C", 48); err != nil {
		return err
	}
	if err := f.SetColWidth(bulkSheet, "J", "J", 32); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// xlsxRow converts numeric cells so spreadsheets can sort them. Text cells
// are escaped the same way as in CSV.
func xlsxRow(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		switch i {
		case 3, 4, 5, 6:
			if v, err := strconv.ParseFloat(c, 64); err == nil {
				out[i] = v
				continue
			}
		case 7:
			if v, err := strconv.ParseInt(c, 10, 64); err == nil {
				out[i] = v
				continue
			}
		}
		out[i] = EscapeCSVCell(c)
	}
	return out
}
