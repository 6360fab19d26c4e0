package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/guarzo/fbascout/internal/model"
)

// BulkColumns is the fixed column order of bulk exports.
var BulkColumns = []string{
	"Identifier", "ASIN", "Title", "Score", "ROI %", "Net Profit", "Buy Box", "Sales Rank", "Status", "Error",
}

// Columns carrying caller- or upstream-supplied text.
const (
	colIdentifier = 0
	colTitle      = 2
	colError      = 9
)

// BulkRow renders one item as export cells, unescaped. Items without
// analytics leave the numeric columns blank.
func BulkRow(item model.BulkItem) []string {
	row := make([]string, len(BulkColumns))
	row[colIdentifier] = item.Identifier
	row[1] = item.ASIN
	row[8] = string(item.Status)
	row[colError] = item.Error

	if a := item.Analytics; a != nil {
		fees := a.Fees.Rounded()
		row[colTitle] = a.Title
		row[3] = strconv.FormatFloat(a.Score, 'f', 1, 64)
		if fees.HasROI() {
			row[4] = strconv.FormatFloat(fees.ROIPercent, 'f', 1, 64)
		}
		row[5] = strconv.FormatFloat(fees.NetProfit, 'f', 2, 64)
		row[6] = strconv.FormatFloat(model.RoundMoney(a.BuyBoxPrice), 'f', 2, 64)
		if a.SalesRank > 0 {
			row[7] = strconv.FormatInt(a.SalesRank, 10)
		}
	}
	return row
}

// WriteBulkCSV writes items as CSV: header first, then one row per item in
// order. Identifier, Title and Error are escaped against formula injection.
// Title and Error are always quoted; other cells are quoted only when they
// need it.
func WriteBulkCSV(w io.Writer, items []model.BulkItem) error {
	bw := bufio.NewWriter(w)

	if err := writeCSVLine(bw, BulkColumns, nil); err != nil {
		return err
	}
	for _, item := range items {
		row := BulkRow(item)
		row[colIdentifier] = EscapeCSVCell(row[colIdentifier])
		row[colTitle] = EscapeCSVCell(row[colTitle])
		row[colError] = EscapeCSVCell(row[colError])
		if err := writeCSVLine(bw, row, map[int]bool{colTitle: true, colError: true}); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeCSVLine(w *bufio.Writer, cells []string, alwaysQuote map[int]bool) error {
	for i, cell := range cells {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if alwaysQuote[i] || needsQuotes(cell) {
			cell = quoteCSVCell(cell)
		}
		if _, err := w.WriteString(cell); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}
