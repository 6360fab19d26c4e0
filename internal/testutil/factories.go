package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/fbascout/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

const asinAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateASIN returns a random well-formed ASIN starting with B0
func (f *TestDataFactory) GenerateASIN() string {
	b := []byte("B0")
	for len(b) < 10 {
		b = append(b, asinAlphabet[f.rand.Intn(len(asinAlphabet))])
	}
	return string(b)
}

// GenerateUPC returns a random 12-digit UPC-A string
func (f *TestDataFactory) GenerateUPC() string {
	return fmt.Sprintf("%012d", f.rand.Int63n(1_000_000_000_000))
}

// GenerateTitle returns a random product title
func (f *TestDataFactory) GenerateTitle() string {
	brands := []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli"}
	items := []string{"Wireless Mouse", "Stainless Kettle", "Puzzle Set", "Yoga Mat", "USB-C Cable"}
	return brands[f.rand.Intn(len(brands))] + " " + items[f.rand.Intn(len(items))]
}

// GeneratePrice returns a random price between $5 and $105 in dollars
func (f *TestDataFactory) GeneratePrice() float64 {
	return float64(f.rand.Intn(10000)+500) / 100
}

// GenerateSalesRank returns a random rank between 1 and 500,000
func (f *TestDataFactory) GenerateSalesRank() int64 {
	return f.rand.Int63n(500_000) + 1
}

// GenerateCategory returns a random known category
func (f *TestDataFactory) GenerateCategory() model.Category {
	return model.Categories[f.rand.Intn(len(model.Categories))]
}

// GenerateAnalytics returns a plausible analytics record for asin
func (f *TestDataFactory) GenerateAnalytics(asin string) *model.AnalyticsRecord {
	offers := f.rand.Intn(20) + 1
	fba := f.rand.Intn(offers + 1)
	return &model.AnalyticsRecord{
		ASIN:          asin,
		Title:         f.GenerateTitle(),
		Category:      f.GenerateCategory(),
		BuyBoxPrice:   f.GeneratePrice(),
		SalesRank:     f.GenerateSalesRank(),
		OfferCount:    offers,
		FBAOffers:     fba,
		FBMOffers:     offers - fba,
		AmazonInStock: f.rand.Intn(4) == 0,
		Score:         float64(f.rand.Intn(101)),
		FetchedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

// GenerateHistory returns n daily points ending at end, with random walks
// on buy box price and sales rank
func (f *TestDataFactory) GenerateHistory(end time.Time, n int) []model.HistoryPoint {
	points := make([]model.HistoryPoint, 0, n)
	price := f.GeneratePrice()
	rank := f.GenerateSalesRank()
	for i := n - 1; i >= 0; i-- {
		price = max(1, price+float64(f.rand.Intn(201)-100)/100)
		rank = max(1, rank+int64(f.rand.Intn(2001)-1000))
		p := float64(int64(price*100)) / 100
		r := rank
		offers := int64(f.rand.Intn(15))
		points = append(points, model.HistoryPoint{
			Timestamp:   end.AddDate(0, 0, -i).Truncate(time.Minute),
			BuyBoxPrice: &p,
			SalesRank:   &r,
			OfferCount:  &offers,
		})
	}
	return points
}
