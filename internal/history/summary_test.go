package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/guarzo/fbascout/internal/model"
)

func dailyPoints(now time.Time, days int, price func(day int) float64, rank func(day int) int64) []model.HistoryPoint {
	points := make([]model.HistoryPoint, 0, days)
	for d := days - 1; d >= 0; d-- {
		p := price(d)
		r := rank(d)
		points = append(points, model.HistoryPoint{
			Timestamp:   now.AddDate(0, 0, -d),
			BuyBoxPrice: &p,
			SalesRank:   &r,
		})
	}
	return points
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, time.Now())
	assert.Equal(t, 0, s.Points)
	assert.Equal(t, TrendStable, s.Trend)
	assert.Zero(t, s.BuyBox.Current)
}

func TestSummarize_FlatPrice(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := dailyPoints(now, 120,
		func(int) float64 { return 20 },
		func(int) int64 { return 1000 })

	s := Summarize(points, now)

	assert.Equal(t, 120, s.Points)
	assert.Equal(t, 20.0, s.BuyBox.Current)
	assert.Equal(t, 20.0, s.BuyBox.Avg30)
	assert.Equal(t, 20.0, s.BuyBox.Avg90)
	assert.Equal(t, 20.0, s.BuyBox.Min90)
	assert.Equal(t, 20.0, s.BuyBox.Max90)
	assert.Zero(t, s.Volatility)
	assert.Equal(t, TrendStable, s.Trend)
	assert.Equal(t, int64(1000), s.RankNow)
	assert.Zero(t, s.Drops30)
	assert.Zero(t, s.New.Current, "channel without data stays zero")
}

func TestSummarize_RisingPriceAndRankDrops(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := dailyPoints(now, 60,
		func(day int) float64 { return 30 - float64(day)*0.1 },
		func(day int) int64 {
			if day%2 == 0 {
				return 500
			}
			return 900
		})

	s := Summarize(points, now)

	assert.Equal(t, TrendUp, s.Trend)
	assert.Equal(t, 30.0, s.BuyBox.Current)
	assert.InDelta(t, 24.1, s.BuyBox.Min90, 1e-9)
	assert.Greater(t, s.Volatility, 0.0)
	assert.Greater(t, s.Drops30, 10)
	assert.InDelta(t, 700, s.RankAvg90, 1)
}

func TestSummarize_FallingPrice(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := dailyPoints(now, 30,
		func(day int) float64 { return 10 + float64(day) },
		func(int) int64 { return 100 })

	assert.Equal(t, TrendDown, Summarize(points, now).Trend)
}
