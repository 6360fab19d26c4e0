package keepa

import (
	"context"
	"fmt"
	"strings"

	"github.com/guarzo/fbascout/internal/analysis"
	"github.com/guarzo/fbascout/internal/fees"
	"github.com/guarzo/fbascout/internal/history"
	"github.com/guarzo/fbascout/internal/model"
)

const (
	mmPerInch     = 25.4
	gramsPerPound = 453.592
)

// FetchRawHistoryFeed returns the product's encoded multi-channel history.
func (c *Client) FetchRawHistoryFeed(ctx context.Context, asin string) (history.RawFeed, error) {
	p, err := c.Product(ctx, strings.ToUpper(strings.TrimSpace(asin)))
	if err != nil {
		return nil, err
	}
	return p.Feed(), nil
}

// FetchAnalytics builds the current analytics record for asin, with fees
// and score computed against profile.
func (c *Client) FetchAnalytics(ctx context.Context, asin string, profile model.CostProfile) (*model.AnalyticsRecord, error) {
	p, err := c.Product(ctx, strings.ToUpper(strings.TrimSpace(asin)))
	if err != nil {
		return nil, err
	}
	rec := c.buildRecord(p, profile)
	if rec == nil {
		return nil, fmt.Errorf("keepa %s: %w", asin, ErrNotFound)
	}
	return rec, nil
}

func (c *Client) buildRecord(p *product, profile model.CostProfile) *model.AnalyticsRecord {
	if p == nil || p.ASIN == "" {
		return nil
	}

	latest := history.Latest(p.Feed())

	rec := &model.AnalyticsRecord{
		ASIN:      strings.ToUpper(p.ASIN),
		Title:     p.Title,
		Category:  model.ParseCategory(p.rootCategory()),
		FetchedAt: c.now().UTC(),
	}

	switch {
	case latest.BuyBoxPrice != nil:
		rec.BuyBoxPrice = *latest.BuyBoxPrice
	case latest.NewPrice != nil:
		rec.BuyBoxPrice = *latest.NewPrice
	}
	if latest.SalesRank != nil {
		rec.SalesRank = *latest.SalesRank
	}
	if latest.OfferCount != nil {
		rec.OfferCount = int(*latest.OfferCount)
	}
	if latest.AmazonInStock != nil {
		rec.AmazonInStock = *latest.AmazonInStock
	}
	rec.FBAOffers, rec.FBMOffers = p.countOffers()
	if rec.OfferCount == 0 {
		rec.OfferCount = rec.FBAOffers + rec.FBMOffers
	}

	analysis.SanitizeRecord(rec, nil)

	in := profile.Apply(model.FeeInputs{
		SellPrice: rec.BuyBoxPrice,
		Length:    float64(p.PackageLength) / mmPerInch,
		Width:     float64(p.PackageWidth) / mmPerInch,
		Height:    float64(p.PackageHeight) / mmPerInch,
		Weight:    float64(p.PackageWeight) / gramsPerPound,
		Category:  rec.Category,
	})
	rec.Fees = fees.Compute(in)
	rec.Score = analysis.Score(*rec)
	return rec
}
