package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"electronics":               CategoryElectronics,
		"  Electronics ":            CategoryElectronics,
		"Home & Kitchen":            CategoryHomeKitchen,
		"home-kitchen":              CategoryHomeKitchen,
		"Toys & Games":              CategoryToys,
		"Video Games":               CategoryVideoGames,
		"Camera & Photo":            CategoryCamera,
		"Clothing, Shoes & Jewelry": CategoryClothing,
		"Health & Household":        CategoryHealth,
		"Pet Supplies":              CategoryPetSupplies,
		"Tools & Home Improvement":  CategoryTools,
		"Automotive":                CategoryAutomotive,
		"":                          CategoryOther,
		"Collectible Coins":         CategoryOther,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseCategory(in), "ParseCategory(%q)", in)
	}
}

func TestCostProfileApply(t *testing.T) {
	in := FeeInputs{SellPrice: 20, Weight: 1, ProductCost: 99, Category: CategoryBooks}
	out := DefaultCostProfile().Apply(in)

	assert.Equal(t, 20.0, out.SellPrice)
	assert.Equal(t, 1.0, out.Weight)
	assert.Equal(t, CategoryBooks, out.Category)
	assert.Equal(t, 10.0, out.ProductCost)
	assert.Equal(t, 1.0, out.ShippingCost)
	assert.Equal(t, 0.5, out.PrepCost)
	assert.Equal(t, 1, out.UnitsPerPack)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 4.00, RoundMoney(3.9992))
	assert.Equal(t, 1.01, RoundMoney(1.005))
	assert.Equal(t, -2.35, RoundMoney(-2.345))
	assert.Equal(t, 49.9, RoundPercent(49.94))
	assert.Equal(t, 50.0, RoundPercent(49.968))
	assert.True(t, math.IsInf(RoundMoney(math.Inf(1)), 1))
	assert.True(t, math.IsNaN(RoundPercent(math.NaN())))
}

func TestFeeResultJSON(t *testing.T) {
	r := FeeResult{
		FulfillmentFee: 2.5,
		ReferralFee:    3.9992,
		NetProfit:      -7.5,
		ROIPercent:     -12.3456,
		MarginPercent:  math.Inf(-1),
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"fulfillmentFee": 2.5, "referralFee": 4, "storageFee": 0, "totalFees": 0,
		"totalCost": 0, "netProfit": -7.5, "roiPercent": -12.3, "marginPercent": null,
		"breakeven": 0
	}`, string(data))

	var back FeeResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, -12.3, back.ROIPercent)
	assert.True(t, math.IsInf(back.MarginPercent, -1))
	assert.False(t, back.HasMargin())
}
