package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/history"
	"github.com/guarzo/fbascout/internal/model"
)

const maxTitle = 40

// PrintBulkTable renders a bulk report for the terminal, followed by its
// summary line.
func PrintBulkTable(w io.Writer, rep *bulk.Report) {
	table := tablewriter.NewWriter(w)
	table.Header("#", "Identifier", "ASIN", "Title", "Score", "ROI %", "Net", "Buy Box", "Rank", "Status")

	for i, item := range rep.Items {
		cells := BulkRow(item)
		status := cells[8]
		if item.Status == model.StatusError {
			status = "error: " + item.Error
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			cells[0],
			cells[1],
			truncate(cells[2], maxTitle),
			cells[3],
			cells[4],
			cells[5],
			cells[6],
			cells[7],
			status,
		)
	}

	table.Render()
	fmt.Fprintln(w, rep.Summary())
}

// PrintFees renders a fee breakdown as a two-column table.
func PrintFees(w io.Writer, r model.FeeResult) {
	r = r.Rounded()
	pct := func(ok bool, v float64) string {
		if !ok {
			return "n/a"
		}
		return fmt.Sprintf("%.1f%%", v)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Item", "Value")
	table.Append("Fulfillment fee", fmt.Sprintf("$%.2f", r.FulfillmentFee))
	table.Append("Referral fee", fmt.Sprintf("$%.2f", r.ReferralFee))
	table.Append("Storage fee", fmt.Sprintf("$%.2f", r.StorageFee))
	table.Append("Total fees", fmt.Sprintf("$%.2f", r.TotalFees))
	table.Append("Total cost", fmt.Sprintf("$%.2f", r.TotalCost))
	table.Append("Net profit", fmt.Sprintf("$%.2f", r.NetProfit))
	table.Append("ROI", pct(r.HasROI(), r.ROIPercent))
	table.Append("Margin", pct(r.HasMargin(), r.MarginPercent))
	table.Append("Breakeven", fmt.Sprintf("$%.2f", r.Breakeven))
	table.Render()
}

// PrintHistorySummary renders the window statistics of a decoded history.
func PrintHistorySummary(w io.Writer, s history.Summary) {
	money := func(v float64) string {
		if v == 0 {
			return "-"
		}
		return fmt.Sprintf("$%.2f", v)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Channel", "Current", "Avg 30d", "Avg 90d", "Min 90d", "Max 90d")
	for _, row := range []struct {
		name  string
		stats history.PriceStats
	}{
		{"Buy Box", s.BuyBox},
		{"New", s.New},
		{"Amazon", s.Amazon},
	} {
		table.Append(row.name, money(row.stats.Current), money(row.stats.Avg30),
			money(row.stats.Avg90), money(row.stats.Min90), money(row.stats.Max90))
	}
	table.Render()

	fmt.Fprintf(w, "points: %d  rank: %d (30d avg %.0f, 90d avg %.0f)  rank drops 30d: %d\n",
		s.Points, s.RankNow, s.RankAvg30, s.RankAvg90, s.Drops30)
	fmt.Fprintf(w, "trend: %s  volatility: %.3f\n", s.Trend, s.Volatility)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
