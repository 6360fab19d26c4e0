package testutil

import (
	"testing"
	"time"

	"github.com/guarzo/fbascout/internal/identifier"
)

func TestNewTestDataFactory(t *testing.T) {
	// Same seed, same values
	factory1 := NewTestDataFactory(12345)
	factory2 := NewTestDataFactory(12345)

	asin1 := factory1.GenerateASIN()
	asin2 := factory2.GenerateASIN()

	if asin1 != asin2 {
		t.Errorf("factories with same seed should generate same values, got %s and %s", asin1, asin2)
	}

	factory3 := NewTestDataFactory(54321)
	if asin1 == factory3.GenerateASIN() {
		t.Error("factories with different seeds should generate different values")
	}
}

func TestGeneratedIdentifiersClassify(t *testing.T) {
	factory := NewTestDataFactory(0)

	for i := 0; i < 50; i++ {
		asin := factory.GenerateASIN()
		if kind, _ := identifier.Classify(asin); kind != identifier.ASIN {
			t.Errorf("GenerateASIN() = %s, classified as %s", asin, kind)
		}

		upc := factory.GenerateUPC()
		if kind, _ := identifier.Classify(upc); kind != identifier.UPC {
			t.Errorf("GenerateUPC() = %s, classified as %s", upc, kind)
		}
	}
}

func TestGenerateAnalytics(t *testing.T) {
	factory := NewTestDataFactory(7)
	rec := factory.GenerateAnalytics("B000TEST01")

	if rec.ASIN != "B000TEST01" {
		t.Errorf("expected ASIN B000TEST01, got %s", rec.ASIN)
	}
	if rec.FBAOffers+rec.FBMOffers != rec.OfferCount {
		t.Errorf("offer split %d+%d does not match total %d", rec.FBAOffers, rec.FBMOffers, rec.OfferCount)
	}
	if rec.BuyBoxPrice < 5 || rec.BuyBoxPrice > 105 {
		t.Errorf("price out of range: %f", rec.BuyBoxPrice)
	}
	if rec.Score < 0 || rec.Score > 100 {
		t.Errorf("score out of range: %f", rec.Score)
	}
}

func TestGenerateHistory(t *testing.T) {
	factory := NewTestDataFactory(99)
	end := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	points := factory.GenerateHistory(end, 30)

	if len(points) != 30 {
		t.Fatalf("expected 30 points, got %d", len(points))
	}
	if !points[len(points)-1].Timestamp.Equal(end) {
		t.Errorf("last point should be at %v, got %v", end, points[len(points)-1].Timestamp)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Timestamp.After(points[i-1].Timestamp) {
			t.Fatalf("points not ascending at %d", i)
		}
		if *points[i].BuyBoxPrice < 1 || *points[i].SalesRank < 1 {
			t.Fatalf("non-positive value at %d", i)
		}
	}
}
