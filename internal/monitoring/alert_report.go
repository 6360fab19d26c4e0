package monitoring

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/report"
)

// AlertReport contains the alerts raised by one watch run plus metadata
type AlertReport struct {
	Metadata AlertReportMetadata `json:"metadata"`
	Alerts   []Alert             `json:"alerts"`
}

// AlertReportMetadata contains report-level information
type AlertReportMetadata struct {
	GeneratedAt    time.Time   `json:"generatedAt"`
	RunID          string      `json:"runId"`
	RunFinishedAt  time.Time   `json:"runFinishedAt"`
	ItemsChecked   int         `json:"itemsChecked"`
	TotalAlerts    int         `json:"totalAlerts"`
	HighSeverity   int         `json:"highSeverity"`
	MediumSeverity int         `json:"mediumSeverity"`
	LowSeverity    int         `json:"lowSeverity"`
	AlertConfig    AlertConfig `json:"alertConfig"`
}

// NewAlertReport wraps the alerts raised against run rep
func NewAlertReport(rep *bulk.Report, alerts []Alert, config AlertConfig) *AlertReport {
	metadata := AlertReportMetadata{
		GeneratedAt:   time.Now(),
		RunID:         rep.ID,
		RunFinishedAt: rep.FinishedAt,
		ItemsChecked:  len(rep.Items),
		TotalAlerts:   len(alerts),
		AlertConfig:   config,
	}

	for _, alert := range alerts {
		switch alert.Severity {
		case "HIGH":
			metadata.HighSeverity++
		case "MEDIUM":
			metadata.MediumSeverity++
		case "LOW":
			metadata.LowSeverity++
		}
	}

	return &AlertReport{Metadata: metadata, Alerts: alerts}
}

var priceDetailKeys = []string{"old_price", "new_price", "delta_usd", "delta_pct"}

// WriteCSV writes the metadata block, a blank separator and one row per alert
func (ar *AlertReport) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	metadata := [][2]string{
		{"Report Generated", ar.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Run", ar.Metadata.RunID},
		{"Run Finished", ar.Metadata.RunFinishedAt.Format("2006-01-02 15:04:05")},
		{"Items Checked", strconv.Itoa(ar.Metadata.ItemsChecked)},
		{"Total Alerts", strconv.Itoa(ar.Metadata.TotalAlerts)},
		{"High Severity", strconv.Itoa(ar.Metadata.HighSeverity)},
		{"Medium Severity", strconv.Itoa(ar.Metadata.MediumSeverity)},
		{"Low Severity", strconv.Itoa(ar.Metadata.LowSeverity)},
	}
	for _, kv := range metadata {
		if err := writer.Write(report.EscapeCSVRow(kv[:])); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}
	}

	if err := writer.Write([]string{}); err != nil {
		return fmt.Errorf("writing separator: %w", err)
	}

	headers := []string{
		"Alert Type",
		"Severity",
		"Timestamp",
		"ASIN",
		"Title",
		"Message",
		"Old Price",
		"New Price",
		"Price Change USD",
		"Price Change Percent",
		"Action Items",
		"Additional Details",
	}
	if err := writer.Write(report.SafeCSVHeaders(headers)); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}

	for _, alert := range ar.Alerts {
		row := []string{
			string(alert.Type),
			alert.Severity,
			alert.Timestamp.Format("2006-01-02 15:04:05"),
			alert.ASIN,
			report.EscapeCSVCell(alert.Title),
			report.EscapeCSVCell(alert.Message),
		}

		for _, key := range priceDetailKeys {
			if v, ok := alert.Details[key].(float64); ok {
				row = append(row, fmt.Sprintf("%.2f", v))
			} else {
				row = append(row, "")
			}
		}

		row = append(row,
			report.EscapeCSVCell(strings.Join(alert.ActionItems, "; ")),
			report.EscapeCSVCell(extraDetails(alert.Details)))

		// Price columns are numeric and may be negative, so only text is escaped.
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing alert row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// extraDetails renders the non-price details as sorted key: value pairs.
func extraDetails(details map[string]any) string {
	var parts []string
	for key, value := range details {
		if isPriceDetail(key) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", key, value))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func isPriceDetail(key string) bool {
	for _, k := range priceDetailKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FormatAlertReport creates a human-readable string representation of the alert report
func FormatAlertReport(ar *AlertReport) string {
	var b strings.Builder
	b.WriteString("WATCHLIST ALERTS\n")
	b.WriteString("================\n\n")

	fmt.Fprintf(&b, "Generated: %s\n", ar.Metadata.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Run: %s (%d items)\n", ar.Metadata.RunID, ar.Metadata.ItemsChecked)
	fmt.Fprintf(&b, "Total Alerts: %d\n", ar.Metadata.TotalAlerts)
	fmt.Fprintf(&b, "Severity Breakdown: %d High, %d Medium, %d Low\n\n",
		ar.Metadata.HighSeverity, ar.Metadata.MediumSeverity, ar.Metadata.LowSeverity)

	cfg := ar.Metadata.AlertConfig
	b.WriteString("Alert Configuration:\n")
	fmt.Fprintf(&b, "- Buy Box Change Threshold: %.1f%% or $%.2f\n", cfg.PriceChangeThresholdPct, cfg.PriceChangeThresholdUSD)
	fmt.Fprintf(&b, "- Opportunity Score: %.0f\n", cfg.OpportunityScore)
	if cfg.MinSeverity != "" {
		fmt.Fprintf(&b, "- Minimum Severity: %s\n", cfg.MinSeverity)
	}
	b.WriteString("\n")

	if len(ar.Alerts) == 0 {
		b.WriteString("No alerts found.\n")
		return b.String()
	}
	b.WriteString("ALERTS:\n")
	b.WriteString("=======\n")
	for _, alert := range ar.Alerts {
		b.WriteString(FormatAlert(alert))
	}
	return b.String()
}
