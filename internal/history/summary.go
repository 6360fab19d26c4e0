package history

import (
	"math"
	"time"

	"github.com/guarzo/fbascout/internal/model"
)

// PriceStats summarizes one money channel.
type PriceStats struct {
	Current float64 `json:"current"`
	Avg30   float64 `json:"avg30"`
	Avg90   float64 `json:"avg90"`
	Min90   float64 `json:"min90"`
	Max90   float64 `json:"max90"`
}

// Summary is the condensed view of a decoded history used by reports.
// Zero values mean no data in the window.
type Summary struct {
	BuyBox     PriceStats `json:"buyBox"`
	New        PriceStats `json:"new"`
	Amazon     PriceStats `json:"amazon"`
	RankNow    int64      `json:"rankNow"`
	RankAvg30  float64    `json:"rankAvg30"`
	RankAvg90  float64    `json:"rankAvg90"`
	Drops30    int        `json:"drops30"`
	Volatility float64    `json:"volatility"`
	Trend      string     `json:"trend"`
	Points     int        `json:"points"`
}

const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Summarize computes window statistics relative to now. Points are expected
// in ascending time order, as Decode produces them.
func Summarize(points []model.HistoryPoint, now time.Time) Summary {
	s := Summary{Points: len(points), Trend: TrendStable}
	if len(points) == 0 {
		return s
	}

	since30 := now.AddDate(0, 0, -30)
	since90 := now.AddDate(0, 0, -90)

	s.BuyBox = priceStats(points, since30, since90, func(p model.HistoryPoint) *float64 { return p.BuyBoxPrice })
	s.New = priceStats(points, since30, since90, func(p model.HistoryPoint) *float64 { return p.NewPrice })
	s.Amazon = priceStats(points, since30, since90, func(p model.HistoryPoint) *float64 { return p.AmazonPrice })

	var ranks30, ranks90 []float64
	var prevRank int64
	for _, p := range points {
		if p.SalesRank == nil {
			continue
		}
		r := *p.SalesRank
		s.RankNow = r
		if !p.Timestamp.Before(since90) {
			ranks90 = append(ranks90, float64(r))
		}
		if !p.Timestamp.Before(since30) {
			ranks30 = append(ranks30, float64(r))
			// A rank improvement is the usual proxy for a sale.
			if prevRank > 0 && r < prevRank {
				s.Drops30++
			}
		}
		prevRank = r
	}
	s.RankAvg30 = mean(ranks30)
	s.RankAvg90 = mean(ranks90)

	buyBox90 := window(points, since90, func(p model.HistoryPoint) *float64 { return p.BuyBoxPrice })
	s.Volatility = coefficientOfVariation(buyBox90)
	s.Trend = trendDirection(buyBox90)
	return s
}

func priceStats(points []model.HistoryPoint, since30, since90 time.Time, field func(model.HistoryPoint) *float64) PriceStats {
	var st PriceStats
	for i := len(points) - 1; i >= 0; i-- {
		if v := field(points[i]); v != nil {
			st.Current = *v
			break
		}
	}

	w90 := window(points, since90, field)
	if len(w90) == 0 {
		return st
	}
	st.Avg30 = mean(window(points, since30, field))
	st.Avg90 = mean(w90)
	st.Min90, st.Max90 = w90[0], w90[0]
	for _, v := range w90[1:] {
		st.Min90 = math.Min(st.Min90, v)
		st.Max90 = math.Max(st.Max90, v)
	}
	return st
}

func window(points []model.HistoryPoint, since time.Time, field func(model.HistoryPoint) *float64) []float64 {
	var out []float64
	for _, p := range points {
		if p.Timestamp.Before(since) {
			continue
		}
		if v := field(p); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation is the sample standard deviation over the mean.
func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	if m <= 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance) / m
}

// trendDirection fits a least-squares line over the observations and reports
// its direction. Fewer than seven observations are always stable.
func trendDirection(values []float64) string {
	if len(values) < 7 {
		return TrendStable
	}

	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denominator

	avg := sumY / n
	if avg <= 0 {
		return TrendStable
	}

	// Slope relative to the mean price, so cheap and expensive items compare.
	relative := slope / avg
	switch {
	case relative > 0.001:
		return TrendUp
	case relative < -0.001:
		return TrendDown
	}
	return TrendStable
}
