package monitoring

import (
	"testing"
	"time"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/model"
)

func TestSnapshotFromReport(t *testing.T) {
	finished := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rep := &bulk.Report{
		ID:         "run-1",
		FinishedAt: finished,
		Items: []model.BulkItem{
			{ASIN: "B000000001", Status: model.StatusSuccess, Analytics: &model.AnalyticsRecord{BuyBoxPrice: 10}},
			{ASIN: "B000000002", Status: model.StatusError, Error: "boom"},
			{Identifier: "bad", Status: model.StatusError},
		},
	}

	snapshot := SnapshotFromReport(rep)

	if snapshot.RunID != "run-1" || !snapshot.Timestamp.Equal(finished) {
		t.Errorf("unexpected snapshot header: %+v", snapshot)
	}
	if len(snapshot.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(snapshot.Items))
	}
	if snapshot.Items["B000000001"].BuyBoxPrice != 10 {
		t.Errorf("Expected buy box 10, got %.2f", snapshot.Items["B000000001"].BuyBoxPrice)
	}

	if len(SnapshotFromReport(nil).Items) != 0 {
		t.Errorf("nil report should give an empty snapshot")
	}
}

func TestCompareSnapshots(t *testing.T) {
	old := &Snapshot{Items: map[string]model.AnalyticsRecord{
		"B000000001": {BuyBoxPrice: 10.00},
		"B000000002": {BuyBoxPrice: 100.00},
		"B000000003": {BuyBoxPrice: 0},
	}}
	new := &Snapshot{Items: map[string]model.AnalyticsRecord{
		"B000000001": {BuyBoxPrice: 10.50}, // 5%, $0.50: below both thresholds
		"B000000002": {BuyBoxPrice: 94.00}, // 6%, but $6 reaches the dollar threshold
		"B000000003": {BuyBoxPrice: 20.00}, // no previous price
	}}

	deltas := CompareSnapshots(old, new, 10, 5)

	if len(deltas) != 1 {
		t.Fatalf("Expected 1 delta, got %d", len(deltas))
	}
	d := deltas[0]
	if d.ASIN != "B000000002" || d.DeltaUSD != -6 {
		t.Errorf("unexpected delta: %+v", d)
	}
}
