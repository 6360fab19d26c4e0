package monitoring

import (
	"math"
	"time"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/model"
)

// Snapshot is the per-ASIN state of one finished run.
type Snapshot struct {
	RunID     string
	Timestamp time.Time
	Items     map[string]model.AnalyticsRecord // keyed by ASIN
}

// SnapshotFromReport keeps the successful items of rep.
func SnapshotFromReport(rep *bulk.Report) *Snapshot {
	s := &Snapshot{Items: map[string]model.AnalyticsRecord{}}
	if rep == nil {
		return s
	}
	s.RunID = rep.ID
	s.Timestamp = rep.FinishedAt
	for _, item := range rep.Items {
		if item.Status == model.StatusSuccess && item.Analytics != nil {
			s.Items[item.ASIN] = *item.Analytics
		}
	}
	return s
}

// PriceDelta represents a buy box change between snapshots
type PriceDelta struct {
	ASIN        string
	Title       string
	OldPrice    float64
	NewPrice    float64
	DeltaUSD    float64
	DeltaPct    float64
	OldSnapshot time.Time
	NewSnapshot time.Time
}

// CompareSnapshots returns buy box changes that reach either threshold
func CompareSnapshots(old, new *Snapshot, thresholdPct, thresholdUSD float64) []PriceDelta {
	var deltas []PriceDelta

	for asin, rec := range new.Items {
		prev, exists := old.Items[asin]
		if !exists {
			continue
		}
		if prev.BuyBoxPrice <= 0 || rec.BuyBoxPrice <= 0 {
			continue
		}

		deltaUSD := rec.BuyBoxPrice - prev.BuyBoxPrice
		deltaPct := deltaUSD / prev.BuyBoxPrice * 100
		if math.Abs(deltaPct) >= thresholdPct || math.Abs(deltaUSD) >= thresholdUSD {
			deltas = append(deltas, PriceDelta{
				ASIN:        asin,
				Title:       rec.Title,
				OldPrice:    prev.BuyBoxPrice,
				NewPrice:    rec.BuyBoxPrice,
				DeltaUSD:    deltaUSD,
				DeltaPct:    deltaPct,
				OldSnapshot: old.Timestamp,
				NewSnapshot: new.Timestamp,
			})
		}
	}

	return deltas
}
