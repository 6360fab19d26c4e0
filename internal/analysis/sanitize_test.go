package analysis

import (
	"math"
	"testing"

	"github.com/guarzo/fbascout/internal/model"
)

func TestSanitizePrice(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		category model.Category
		config   *SanitizeConfig
		want     float64
	}{
		{"normal", 24.99, model.CategoryToys, nil, 24.99},
		{"nan", math.NaN(), model.CategoryToys, nil, 0},
		{"inf", math.Inf(1), model.CategoryToys, nil, 0},
		{"negative", -5, model.CategoryToys, nil, 0},
		{"69420", 69420, model.CategoryToys, &SanitizeConfig{MinPrice: 1, CustomCaps: map[model.Category]float64{model.CategoryToys: 1e6}}, 0},
		{"placeholder", 9999.99, model.CategoryElectronics, nil, 0},
		{"over_grocery_cap", 750, model.CategoryGrocery, nil, 0},
		{"under_electronics_cap", 750, model.CategoryElectronics, nil, 750},
		{"unknown_category_default_cap", 9000, "spaceships", nil, 9000},
		{"below_minimum", 0.5, model.CategoryBooks, nil, 0},
		{"custom_minimum", 0.5, model.CategoryBooks, &SanitizeConfig{MinPrice: 0.25}, 0.5},
		{"custom_cap", 300, model.CategoryToys, &SanitizeConfig{MinPrice: 1, CustomCaps: map[model.Category]float64{model.CategoryToys: 200}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePrice(tt.price, tt.category, tt.config)
			if got != tt.want {
				t.Errorf("SanitizePrice(%v, %s) = %v, want %v", tt.price, tt.category, got, tt.want)
			}
		})
	}
}

func TestSanitizeRecord(t *testing.T) {
	rec := &model.AnalyticsRecord{BuyBoxPrice: 12345.67, Category: model.CategoryElectronics}
	if !SanitizeRecord(rec, nil) {
		t.Error("expected placeholder price to be dropped")
	}
	if rec.BuyBoxPrice != 0 {
		t.Errorf("expected price cleared, got %v", rec.BuyBoxPrice)
	}

	ok := &model.AnalyticsRecord{BuyBoxPrice: 19.99, Category: model.CategoryToys}
	if SanitizeRecord(ok, nil) {
		t.Error("valid price should be kept")
	}
	if SanitizeRecord(nil, nil) {
		t.Error("nil record should be a no-op")
	}
}
