package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AlertType represents different kinds of watchlist events
type AlertType string

const (
	AlertPriceDrop      AlertType = "PRICE_DROP"
	AlertPriceIncrease  AlertType = "PRICE_INCREASE"
	AlertNewOpportunity AlertType = "NEW_OPPORTUNITY"
	AlertLostMargin     AlertType = "LOST_MARGIN"
	AlertAmazonReturned AlertType = "AMAZON_RETURNED"
)

// Alert represents a significant change between two runs
type Alert struct {
	Type        AlertType      `json:"type"`
	Severity    string         `json:"severity"` // "HIGH", "MEDIUM", "LOW"
	ASIN        string         `json:"asin"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	ActionItems []string       `json:"actionItems,omitempty"`
}

// AlertConfig contains alert generation parameters
type AlertConfig struct {
	PriceChangeThresholdPct float64 `yaml:"price_change_pct"` // Trigger alert if buy box moves by this %
	PriceChangeThresholdUSD float64 `yaml:"price_change_usd"` // or by this $
	OpportunityScore        float64 `yaml:"opportunity_score"`
	MinSeverity             string  `yaml:"min_severity"` // "HIGH", "MEDIUM", "LOW"
}

// DefaultAlertConfig returns the thresholds used by the watcher
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		PriceChangeThresholdPct: 10,
		PriceChangeThresholdUSD: 5,
		OpportunityScore:        60,
	}
}

// AlertEngine compares snapshots and generates alerts
type AlertEngine struct {
	config AlertConfig
	now    func() time.Time
}

// NewAlertEngine creates a new alert engine with the given config
func NewAlertEngine(config AlertConfig) *AlertEngine {
	return &AlertEngine{config: config, now: time.Now}
}

// Compare runs every check between two snapshots. Alerts come back ordered
// by severity, then ASIN.
func (ae *AlertEngine) Compare(old, new *Snapshot) []Alert {
	alerts := ae.GenerateAlerts(CompareSnapshots(old, new, ae.config.PriceChangeThresholdPct, ae.config.PriceChangeThresholdUSD))
	alerts = append(alerts, ae.CheckOpportunities(old, new)...)
	alerts = ae.filterBySeverity(alerts)

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return severityRank(alerts[i].Severity) > severityRank(alerts[j].Severity)
		}
		if alerts[i].ASIN != alerts[j].ASIN {
			return alerts[i].ASIN < alerts[j].ASIN
		}
		return alerts[i].Type < alerts[j].Type
	})
	return alerts
}

// GenerateAlerts turns buy box deltas into price alerts
func (ae *AlertEngine) GenerateAlerts(deltas []PriceDelta) []Alert {
	var alerts []Alert

	for _, delta := range deltas {
		details := map[string]any{
			"old_price": delta.OldPrice,
			"new_price": delta.NewPrice,
			"delta_pct": delta.DeltaPct,
			"delta_usd": delta.DeltaUSD,
		}

		if delta.DeltaUSD < 0 {
			alerts = append(alerts, Alert{
				Type:      AlertPriceDrop,
				Severity:  getSeverity(delta.DeltaPct),
				ASIN:      delta.ASIN,
				Title:     delta.Title,
				Message:   fmt.Sprintf("Buy box dropped %.1f%% ($%.2f)", -delta.DeltaPct, -delta.DeltaUSD),
				Timestamp: ae.now(),
				Details:   details,
				ActionItems: []string{
					"Re-check margin before the next purchase",
					"Watch for a race to the bottom among FBA sellers",
				},
			})
			continue
		}

		alerts = append(alerts, Alert{
			Type:      AlertPriceIncrease,
			Severity:  getSeverity(delta.DeltaPct),
			ASIN:      delta.ASIN,
			Title:     delta.Title,
			Message:   fmt.Sprintf("Buy box increased %.1f%% ($%.2f)", delta.DeltaPct, delta.DeltaUSD),
			Timestamp: ae.now(),
			Details:   details,
			ActionItems: []string{
				fmt.Sprintf("New buy box: $%.2f", delta.NewPrice),
				"Consider restocking while the price holds",
			},
		})
	}

	return alerts
}

// CheckOpportunities flags items that crossed the score threshold in either
// direction, and items where Amazon came back on the listing.
func (ae *AlertEngine) CheckOpportunities(old, new *Snapshot) []Alert {
	var alerts []Alert

	for asin, rec := range new.Items {
		prev, exists := old.Items[asin]
		if !exists {
			continue
		}

		switch {
		case prev.Score < ae.config.OpportunityScore && rec.Score >= ae.config.OpportunityScore:
			alerts = append(alerts, Alert{
				Type:      AlertNewOpportunity,
				Severity:  "MEDIUM",
				ASIN:      asin,
				Title:     rec.Title,
				Message:   fmt.Sprintf("Score rose to %.1f (was %.1f)", rec.Score, prev.Score),
				Timestamp: ae.now(),
				Details: map[string]any{
					"old_score":  prev.Score,
					"new_score":  rec.Score,
					"net_profit": rec.Fees.NetProfit,
				},
				ActionItems: []string{
					fmt.Sprintf("Source at or below $%.2f landed cost", rec.Fees.Breakeven),
				},
			})
		case prev.Fees.NetProfit > 0 && rec.Fees.NetProfit <= 0:
			alerts = append(alerts, Alert{
				Type:      AlertLostMargin,
				Severity:  "HIGH",
				ASIN:      asin,
				Title:     rec.Title,
				Message:   fmt.Sprintf("No longer profitable: net $%.2f (was $%.2f)", rec.Fees.NetProfit, prev.Fees.NetProfit),
				Timestamp: ae.now(),
				Details: map[string]any{
					"old_net": prev.Fees.NetProfit,
					"new_net": rec.Fees.NetProfit,
				},
				ActionItems: []string{"Pause purchasing"},
			})
		}

		if !prev.AmazonInStock && rec.AmazonInStock {
			alerts = append(alerts, Alert{
				Type:        AlertAmazonReturned,
				Severity:    "HIGH",
				ASIN:        asin,
				Title:       rec.Title,
				Message:     "Amazon is selling this item again",
				Timestamp:   ae.now(),
				ActionItems: []string{"Expect buy box share to fall"},
			})
		}
	}

	return alerts
}

// filterBySeverity removes alerts below the configured minimum severity
func (ae *AlertEngine) filterBySeverity(alerts []Alert) []Alert {
	if ae.config.MinSeverity == "" {
		return alerts
	}

	minRank := severityRank(strings.ToUpper(ae.config.MinSeverity))
	if minRank == 0 {
		return alerts // Invalid severity, no filtering
	}

	var filtered []Alert
	for _, alert := range alerts {
		if severityRank(alert.Severity) >= minRank {
			filtered = append(filtered, alert)
		}
	}

	return filtered
}

func getSeverity(deltaPct float64) string {
	if deltaPct < 0 {
		deltaPct = -deltaPct
	}
	if deltaPct >= 30 {
		return "HIGH"
	} else if deltaPct >= 15 {
		return "MEDIUM"
	}
	return "LOW"
}

func severityRank(severity string) int {
	switch severity {
	case "HIGH":
		return 3
	case "MEDIUM":
		return 2
	case "LOW":
		return 1
	default:
		return 0
	}
}

// FormatAlert creates a human-readable string representation of an alert
func FormatAlert(alert Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s] %s %s", alert.Severity, alert.Type, alert.ASIN)
	if alert.Title != "" {
		fmt.Fprintf(&b, " (%s)", alert.Title)
	}
	fmt.Fprintf(&b, "\n  %s\n", alert.Message)
	for _, action := range alert.ActionItems {
		fmt.Fprintf(&b, "  - %s\n", action)
	}
	return b.String()
}
