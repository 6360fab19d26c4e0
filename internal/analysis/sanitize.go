package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/guarzo/fbascout/internal/model"
)

// PriceCaps defines maximum believable buy box prices by category
var PriceCaps = map[model.Category]float64{
	model.CategoryGrocery:     500.00,
	model.CategoryBeauty:      1000.00,
	model.CategoryHealth:      1000.00,
	model.CategoryBooks:       2000.00,
	model.CategoryToys:        5000.00,
	model.CategoryVideoGames:  5000.00,
	model.CategoryElectronics: 20000.00,
	model.CategoryComputers:   20000.00,
	model.CategoryCamera:      20000.00,
	model.CategoryJewelry:     50000.00,
}

const defaultPriceCap = 10000.00

// SanitizeConfig holds configuration for price sanitization
type SanitizeConfig struct {
	MinPrice   float64                    // Minimum believable price (default 1.00)
	CustomCaps map[model.Category]float64 // Override default price caps
}

// DefaultSanitizeConfig returns default sanitization settings
func DefaultSanitizeConfig() *SanitizeConfig {
	return &SanitizeConfig{
		MinPrice: 1.00,
	}
}

// SanitizePrice validates a single price, returning 0 when it can't be
// trusted
func SanitizePrice(price float64, category model.Category, config *SanitizeConfig) float64 {
	if config == nil {
		config = DefaultSanitizeConfig()
	}

	// Check for obvious invalid prices (69420 pattern, negative, NaN)
	if isInvalidPrice(price) {
		return 0
	}

	if price > capForCategory(category, config) {
		return 0 // Return 0 for outliers rather than capping
	}

	if price < config.MinPrice {
		return 0
	}

	return price
}

// SanitizeRecord clears an untrustworthy buy box price. It reports whether
// the price was dropped.
func SanitizeRecord(rec *model.AnalyticsRecord, config *SanitizeConfig) bool {
	if rec == nil || rec.BuyBoxPrice == 0 {
		return false
	}
	clean := SanitizePrice(rec.BuyBoxPrice, rec.Category, config)
	if clean == rec.BuyBoxPrice {
		return false
	}
	rec.BuyBoxPrice = clean
	return true
}

// Helper functions

func isInvalidPrice(price float64) bool {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return true
	}

	if price < 0 {
		return true
	}

	// Placeholder prices sellers use to park a listing
	if strings.Contains(formatPrice(price), "69420") {
		return true
	}
	testValues := []float64{12345.67, 99999.99, 11111.11, 88888.88, 9999.99}
	for _, test := range testValues {
		if math.Abs(price-test) < 0.01 {
			return true
		}
	}

	return false
}

func capForCategory(category model.Category, config *SanitizeConfig) float64 {
	if cap, ok := config.CustomCaps[category]; ok {
		return cap
	}
	if cap, ok := PriceCaps[category]; ok {
		return cap
	}
	return defaultPriceCap
}

func formatPrice(price float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", price), "0"), ".")
}
