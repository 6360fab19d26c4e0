package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/guarzo/fbascout/internal/model"
)

// Score weights. The parts add up to 100 before the Amazon penalty.
const (
	maxROIPoints         = 40.0
	maxRankPoints        = 30.0
	maxCompetitionPoints = 20.0
	maxMarginPoints      = 10.0

	roiCapPercent    = 100.0
	marginCapPercent = 40.0

	// Amazon holding the listing makes the buy box hard to win.
	amazonPenalty = 0.6
)

// Breakdown is the per-factor contribution to a score.
type Breakdown struct {
	ROI          float64 `json:"roi"`
	Rank         float64 `json:"rank"`
	Competition  float64 `json:"competition"`
	Margin       float64 `json:"margin"`
	AmazonOnBox  bool    `json:"amazonOnBox"`
	Unprofitable bool    `json:"unprofitable"`
	Total        float64 `json:"total"`
}

// String renders the breakdown the way the --why column shows it.
func (b Breakdown) String() string {
	if b.Unprofitable {
		return "Unprofitable"
	}
	parts := []string{
		fmt.Sprintf("ROI:%.1f", b.ROI),
		fmt.Sprintf("Rank:%.1f", b.Rank),
		fmt.Sprintf("Comp:%.1f", b.Competition),
		fmt.Sprintf("Margin:%.1f", b.Margin),
	}
	if b.AmazonOnBox {
		parts = append(parts, fmt.Sprintf("Amazon:%.1fx", amazonPenalty))
	}
	return strings.Join(parts, " ")
}

// Score rates a sourcing opportunity from 0 to 100. Records without a
// positive net profit score 0.
func Score(rec model.AnalyticsRecord) float64 {
	return Explain(rec).Total
}

// Explain computes the score together with its parts.
func Explain(rec model.AnalyticsRecord) Breakdown {
	var b Breakdown
	if rec.BuyBoxPrice <= 0 || rec.Fees.NetProfit <= 0 {
		b.Unprofitable = true
		return b
	}

	b.ROI = scaled(rec.Fees.ROIPercent, roiCapPercent, maxROIPoints)
	b.Margin = scaled(rec.Fees.MarginPercent, marginCapPercent, maxMarginPoints)
	b.Rank = rankPoints(rec.SalesRank)
	b.Competition = competitionPoints(rec.OfferCount)

	total := b.ROI + b.Rank + b.Competition + b.Margin
	if rec.AmazonInStock {
		b.AmazonOnBox = true
		total *= amazonPenalty
	}
	b.Total = round1(math.Min(100, math.Max(0, total)))
	return b
}

// scaled maps value in [0, limit] linearly onto [0, points]. Infinite
// values (no cost basis) get full points.
func scaled(value, limit, points float64) float64 {
	switch {
	case math.IsNaN(value), value <= 0:
		return 0
	case value >= limit:
		return points
	}
	return value / limit * points
}

// rankPoints rewards fast-moving items; lower rank sells more often.
func rankPoints(rank int64) float64 {
	switch {
	case rank <= 0:
		return 0 // No rank data
	case rank <= 1_000:
		return 30
	case rank <= 10_000:
		return 25
	case rank <= 50_000:
		return 18
	case rank <= 100_000:
		return 12
	case rank <= 250_000:
		return 6
	default:
		return 2
	}
}

// competitionPoints rewards listings with few sellers to split sales with.
func competitionPoints(offers int) float64 {
	switch {
	case offers <= 0:
		return 20 // Nobody selling yet
	case offers <= 3:
		return 18
	case offers <= 7:
		return 14
	case offers <= 15:
		return 8
	case offers <= 30:
		return 4
	default:
		return 1
	}
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
