package model

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// FeeResult holds full-precision fee and profitability figures. ROIPercent
// and MarginPercent are +Inf or -Inf when their divisor was zero; use
// HasROI/HasMargin before displaying them.
type FeeResult struct {
	FulfillmentFee float64
	ReferralFee    float64
	StorageFee     float64
	TotalFees      float64
	TotalCost      float64
	NetProfit      float64
	ROIPercent     float64
	MarginPercent  float64
	Breakeven      float64
}

func (r FeeResult) HasROI() bool { return !math.IsInf(r.ROIPercent, 0) && !math.IsNaN(r.ROIPercent) }
func (r FeeResult) HasMargin() bool {
	return !math.IsInf(r.MarginPercent, 0) && !math.IsNaN(r.MarginPercent)
}

// Rounded returns the presentation form: money to cents, percentages to one
// decimal place. Undefined percentages are left untouched.
func (r FeeResult) Rounded() FeeResult {
	out := FeeResult{
		FulfillmentFee: RoundMoney(r.FulfillmentFee),
		ReferralFee:    RoundMoney(r.ReferralFee),
		StorageFee:     RoundMoney(r.StorageFee),
		TotalFees:      RoundMoney(r.TotalFees),
		TotalCost:      RoundMoney(r.TotalCost),
		NetProfit:      RoundMoney(r.NetProfit),
		Breakeven:      RoundMoney(r.Breakeven),
		ROIPercent:     r.ROIPercent,
		MarginPercent:  r.MarginPercent,
	}
	if r.HasROI() {
		out.ROIPercent = RoundPercent(r.ROIPercent)
	}
	if r.HasMargin() {
		out.MarginPercent = RoundPercent(r.MarginPercent)
	}
	return out
}

type feeResultJSON struct {
	FulfillmentFee float64  `json:"fulfillmentFee"`
	ReferralFee    float64  `json:"referralFee"`
	StorageFee     float64  `json:"storageFee"`
	TotalFees      float64  `json:"totalFees"`
	TotalCost      float64  `json:"totalCost"`
	NetProfit      float64  `json:"netProfit"`
	ROIPercent     *float64 `json:"roiPercent"`
	MarginPercent  *float64 `json:"marginPercent"`
	Breakeven      float64  `json:"breakeven"`
}

// MarshalJSON writes the rounded figures; undefined percentages become null.
func (r FeeResult) MarshalJSON() ([]byte, error) {
	rr := r.Rounded()
	out := feeResultJSON{
		FulfillmentFee: rr.FulfillmentFee,
		ReferralFee:    rr.ReferralFee,
		StorageFee:     rr.StorageFee,
		TotalFees:      rr.TotalFees,
		TotalCost:      rr.TotalCost,
		NetProfit:      rr.NetProfit,
		Breakeven:      rr.Breakeven,
	}
	if rr.HasROI() {
		out.ROIPercent = &rr.ROIPercent
	}
	if rr.HasMargin() {
		out.MarginPercent = &rr.MarginPercent
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the MarshalJSON form. Null percentages come back as
// an infinity signed like the net profit.
func (r *FeeResult) UnmarshalJSON(data []byte) error {
	var in feeResultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = FeeResult{
		FulfillmentFee: in.FulfillmentFee,
		ReferralFee:    in.ReferralFee,
		StorageFee:     in.StorageFee,
		TotalFees:      in.TotalFees,
		TotalCost:      in.TotalCost,
		NetProfit:      in.NetProfit,
		Breakeven:      in.Breakeven,
	}
	undefined := math.Inf(1)
	if in.NetProfit < 0 {
		undefined = math.Inf(-1)
	}
	r.ROIPercent, r.MarginPercent = undefined, undefined
	if in.ROIPercent != nil {
		r.ROIPercent = *in.ROIPercent
	}
	if in.MarginPercent != nil {
		r.MarginPercent = *in.MarginPercent
	}
	return nil
}

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundPercent rounds half away from zero to one decimal place.
func RoundPercent(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
