package fees

import (
	"math"

	"github.com/guarzo/fbascout/internal/model"
)

// FBA fee schedule constants. Dimensions are inches, weights pounds.
const (
	BaseFulfillmentFee  = 2.50
	PerPoundFee         = 0.40
	OversizeSurcharge   = 2.00
	DimensionalDivisor  = 166.0
	CubicInchesPerFoot  = 1728.0
	StoragePerCubicFoot = 0.83
	DefaultReferralRate = 0.15

	maxStandardLength = 12.0
	maxStandardWidth  = 9.0
	maxStandardHeight = 2.0
)

var referralRates = map[model.Category]float64{
	model.CategoryElectronics: 0.08,
	model.CategoryComputers:   0.08,
	model.CategoryCamera:      0.08,
	model.CategoryAutomotive:  0.12,
	model.CategoryClothing:    0.17,
	model.CategoryJewelry:     0.20,
}

// ReferralRate returns the referral fee fraction for a category. Unknown
// categories get DefaultReferralRate.
func ReferralRate(c model.Category) float64 {
	if rate, ok := referralRates[c]; ok {
		return rate
	}
	return DefaultReferralRate
}

// IsOversize reports whether any dimension exceeds the standard-size limits.
func IsOversize(length, width, height float64) bool {
	return length > maxStandardLength || width > maxStandardWidth || height > maxStandardHeight
}

// Compute runs the fee and profitability calculation at full precision.
// It never fails: zero divisors yield infinite ROI or margin. Callers that
// accept user input should go through ComputeChecked.
func Compute(in model.FeeInputs) model.FeeResult {
	volume := in.Length * in.Width * in.Height
	dimWeight := volume / DimensionalDivisor
	billable := math.Max(in.Weight, dimWeight)

	fulfillment := BaseFulfillmentFee + math.Max(0, billable-1)*PerPoundFee
	if IsOversize(in.Length, in.Width, in.Height) {
		fulfillment += OversizeSurcharge
	}

	referral := in.SellPrice * ReferralRate(in.Category)
	storage := volume / CubicInchesPerFoot * StoragePerCubicFoot

	units := float64(max(in.UnitsPerPack, 1))
	productPerUnit := in.ProductCost / units
	shippingPerUnit := in.ShippingCost / units
	prepPerUnit := in.PrepCost / units

	tax := (productPerUnit + shippingPerUnit) * in.TaxRate

	totalFees := fulfillment + referral + storage + in.CustomFees
	totalCost := productPerUnit + shippingPerUnit + prepPerUnit + tax + totalFees
	net := in.SellPrice - totalCost

	return model.FeeResult{
		FulfillmentFee: fulfillment,
		ReferralFee:    referral,
		StorageFee:     storage,
		TotalFees:      totalFees,
		TotalCost:      totalCost,
		NetProfit:      net,
		ROIPercent:     percentOf(net, productPerUnit+shippingPerUnit+prepPerUnit),
		MarginPercent:  percentOf(net, in.SellPrice),
		Breakeven:      totalCost,
	}
}

// percentOf returns part/whole*100, or an infinity signed like part when
// whole is zero.
func percentOf(part, whole float64) float64 {
	if whole == 0 {
		if part < 0 {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	return part / whole * 100
}
