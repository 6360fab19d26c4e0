package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/fees"
	"github.com/guarzo/fbascout/internal/history"
	"github.com/guarzo/fbascout/internal/model"
)

func sampleItems() []model.BulkItem {
	result := fees.Compute(model.FeeInputs{
		SellPrice:    49.99,
		ProductCost:  25,
		ShippingCost: 3.50,
		PrepCost:     0.50,
		Weight:       0.7,
		Category:     model.CategoryElectronics,
	})

	return []model.BulkItem{
		{
			Identifier: "B07XJ8C8F5",
			ASIN:       "B07XJ8C8F5",
			Status:     model.StatusSuccess,
			Analytics: &model.AnalyticsRecord{
				ASIN:        "B07XJ8C8F5",
				Title:       `Widget, "Deluxe"`,
				BuyBoxPrice: 49.99,
				SalesRank:   1200,
				Fees:        result,
				Score:       72.5,
			},
		},
		{
			Identifier: "883412740951",
			Status:     model.StatusError,
			Failure:    model.FailureResolution,
			Error:      `=HYPERLINK("x")`,
		},
		{
			Identifier: "bad,id",
			Status:     model.StatusError,
			Failure:    model.FailureInvalid,
			Error:      "Invalid format",
		},
	}
}

func TestWriteBulkCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBulkCSV(&buf, sampleItems()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\r\n"), "\r\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Identifier,ASIN,Title,Score,ROI %,Net Profit,Buy Box,Sales Rank,Status,Error", lines[0])
	assert.Equal(t, `B07XJ8C8F5,B07XJ8C8F5,"Widget, ""Deluxe""",72.5,50.0,14.49,49.99,1200,success,""`, lines[1])
	assert.Equal(t, `883412740951,,"",,,,,,error,"'=HYPERLINK(""x"")"`, lines[2])
	assert.Equal(t, `"bad,id",,"",,,,,,error,"Invalid format"`, lines[3])
}

func TestWriteBulkCSV_EmptyAndUndefinedROI(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBulkCSV(&buf, nil))
	assert.Equal(t, strings.Join(BulkColumns, ",")+"\r\n", buf.String())

	item := model.BulkItem{
		Identifier: "B000000001",
		ASIN:       "B000000001",
		Status:     model.StatusSuccess,
		Analytics: &model.AnalyticsRecord{
			Title: "Free sample",
			Fees:  model.FeeResult{NetProfit: 5, ROIPercent: math.Inf(1), MarginPercent: 100},
		},
	}
	row := BulkRow(item)
	assert.Empty(t, row[4], "undefined ROI is blank")
	assert.Empty(t, row[7], "no rank is blank")
	assert.Equal(t, "5.00", row[5])
}

func TestWriteBulkCSV_EscapesIdentifier(t *testing.T) {
	items := []model.BulkItem{{
		Identifier: "=HYPERLINK(\"http://x\")",
		Status:     model.StatusError,
		Failure:    model.FailureInvalid,
		Error:      "Invalid format",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteBulkCSV(&buf, items))

	lines := strings.Split(buf.String(), "\r\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[1], `"'=HYPERLINK(""http://x"")",`), lines[1])
}

func TestWriteBulkXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBulkXLSX(&buf, sampleItems()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(bulkSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, BulkColumns, rows[0])
	assert.Equal(t, `Widget, "Deluxe"`, rows[1][2])
	assert.Equal(t, "72.5", rows[1][3])
	assert.Equal(t, `'=HYPERLINK("x")`, rows[2][9])

	style, err := f.GetCellStyle(bulkSheet, "A1")
	require.NoError(t, err)
	assert.NotZero(t, style)
}

func TestPrintBulkTable(t *testing.T) {
	items := sampleItems()
	rep := &bulk.Report{State: bulk.StateCompleted, Items: items, Succeeded: 1, Total: len(items)}

	var buf bytes.Buffer
	PrintBulkTable(&buf, rep)

	out := buf.String()
	assert.Contains(t, out, "B07XJ8C8F5")
	assert.Contains(t, out, "1/3 succeeded")
	assert.Contains(t, out, "Invalid format")
}

func TestPrintFees(t *testing.T) {
	var buf bytes.Buffer
	PrintFees(&buf, model.FeeResult{NetProfit: -1, ROIPercent: math.Inf(-1), MarginPercent: -10})

	out := buf.String()
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "-10.0%")
}

func TestPrintHistorySummary(t *testing.T) {
	var buf bytes.Buffer
	PrintHistorySummary(&buf, history.Summary{
		BuyBox:  history.PriceStats{Current: 19.99, Avg30: 20.5},
		RankNow: 1500,
		Drops30: 12,
		Trend:   history.TrendUp,
		Points:  90,
	})

	out := buf.String()
	assert.Contains(t, out, "$19.99")
	assert.Contains(t, out, "points: 90")
	assert.Contains(t, out, "rank drops 30d: 12")
	assert.Contains(t, out, "trend: up")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
