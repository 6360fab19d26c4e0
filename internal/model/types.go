package model

import (
	"strings"
	"time"
)

// HistoryPoint is one decoded observation of a product's marketplace state.
// A nil field means the feed had no usable value for that channel at this
// point; it never means zero.
type HistoryPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	AmazonPrice   *float64  `json:"amazonPrice,omitempty"`
	NewPrice      *float64  `json:"newPrice,omitempty"`
	UsedPrice     *float64  `json:"usedPrice,omitempty"`
	BuyBoxPrice   *float64  `json:"buyBoxPrice,omitempty"`
	NewFBAPrice   *float64  `json:"newFBAPrice,omitempty"`
	NewFBMPrice   *float64  `json:"newFBMPrice,omitempty"`
	SalesRank     *int64    `json:"salesRank,omitempty"`
	AmazonInStock *bool     `json:"amazonInStock,omitempty"`
	OfferCount    *int64    `json:"offerCount,omitempty"`
}

// Category drives the referral fee rate.
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryComputers   Category = "computers"
	CategoryCamera      Category = "camera"
	CategoryVideoGames  Category = "video_games"
	CategoryToys        Category = "toys"
	CategoryHomeKitchen Category = "home_kitchen"
	CategoryBeauty      Category = "beauty"
	CategoryHealth      Category = "health"
	CategoryGrocery     Category = "grocery"
	CategoryBooks       Category = "books"
	CategorySports      Category = "sports"
	CategoryPetSupplies Category = "pet_supplies"
	CategoryTools       Category = "tools"
	CategoryOffice      Category = "office"
	CategoryBaby        Category = "baby"
	CategoryAutomotive  Category = "automotive"
	CategoryClothing    Category = "clothing"
	CategoryJewelry     Category = "jewelry"
	CategoryOther       Category = "other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryElectronics, CategoryComputers, CategoryCamera, CategoryVideoGames,
	CategoryToys, CategoryHomeKitchen, CategoryBeauty, CategoryHealth,
	CategoryGrocery, CategoryBooks, CategorySports, CategoryPetSupplies,
	CategoryTools, CategoryOffice, CategoryBaby, CategoryAutomotive,
	CategoryClothing, CategoryJewelry, CategoryOther,
}

// ParseCategory maps a free-form category name (as typed by a user or
// returned by a marketplace category tree) to a Category. Unknown names map
// to CategoryOther.
func ParseCategory(name string) Category {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("&", " ", "-", " ", "_", " ").Replace(key)
	key = strings.Join(strings.Fields(key), "_")

	for _, c := range Categories {
		if string(c) == key {
			return c
		}
	}

	switch {
	case strings.Contains(key, "electronic"):
		return CategoryElectronics
	case strings.Contains(key, "computer"):
		return CategoryComputers
	case strings.Contains(key, "camera"), strings.Contains(key, "photo"):
		return CategoryCamera
	case strings.Contains(key, "video_game"):
		return CategoryVideoGames
	case strings.Contains(key, "toy"), strings.Contains(key, "game"):
		return CategoryToys
	case strings.Contains(key, "kitchen"), strings.HasPrefix(key, "home"):
		return CategoryHomeKitchen
	case strings.Contains(key, "beauty"), strings.Contains(key, "personal_care"):
		return CategoryBeauty
	case strings.Contains(key, "health"), strings.Contains(key, "household"):
		return CategoryHealth
	case strings.Contains(key, "grocery"), strings.Contains(key, "gourmet"):
		return CategoryGrocery
	case strings.Contains(key, "book"):
		return CategoryBooks
	case strings.Contains(key, "sport"), strings.Contains(key, "outdoor"):
		return CategorySports
	case strings.Contains(key, "pet"):
		return CategoryPetSupplies
	case strings.Contains(key, "tool"), strings.Contains(key, "improvement"):
		return CategoryTools
	case strings.Contains(key, "office"):
		return CategoryOffice
	case strings.Contains(key, "baby"):
		return CategoryBaby
	case strings.Contains(key, "automotive"):
		return CategoryAutomotive
	case strings.Contains(key, "clothing"), strings.Contains(key, "apparel"), strings.Contains(key, "shoes"):
		return CategoryClothing
	case strings.Contains(key, "jewelry"):
		return CategoryJewelry
	}
	return CategoryOther
}

// FeeInputs describes one unit being evaluated. Dimensions are inches,
// weight is pounds, TaxRate is a fraction (0.0825 for 8.25%). Product,
// shipping and prep costs are per pack and get divided by UnitsPerPack.
type FeeInputs struct {
	SellPrice    float64  `json:"sellPrice"`
	ProductCost  float64  `json:"productCost"`
	ShippingCost float64  `json:"shippingCost"`
	PrepCost     float64  `json:"prepCost"`
	UnitsPerPack int      `json:"unitsPerPack"`
	Weight       float64  `json:"weight"`
	Length       float64  `json:"length"`
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	Category     Category `json:"category"`
	TaxRate      float64  `json:"taxRate"`
	CustomFees   float64  `json:"customFees"`
}

// CostProfile carries the cost assumptions applied to every item of a bulk
// run when the caller has not priced items individually.
type CostProfile struct {
	ProductCost  float64 `json:"productCost" yaml:"product_cost"`
	ShippingCost float64 `json:"shippingCost" yaml:"shipping_cost"`
	PrepCost     float64 `json:"prepCost" yaml:"prep_cost"`
	CustomFees   float64 `json:"customFees" yaml:"custom_fees"`
	TaxRate      float64 `json:"taxRate" yaml:"tax_rate"`
	UnitsPerPack int     `json:"unitsPerPack" yaml:"units_per_pack"`
}

// DefaultCostProfile is used by bulk runs that do not supply their own.
func DefaultCostProfile() CostProfile {
	return CostProfile{
		ProductCost:  10.00,
		ShippingCost: 1.00,
		PrepCost:     0.50,
		UnitsPerPack: 1,
	}
}

// Apply fills the cost side of FeeInputs from the profile.
func (p CostProfile) Apply(in FeeInputs) FeeInputs {
	in.ProductCost = p.ProductCost
	in.ShippingCost = p.ShippingCost
	in.PrepCost = p.PrepCost
	in.CustomFees = p.CustomFees
	in.TaxRate = p.TaxRate
	in.UnitsPerPack = p.UnitsPerPack
	return in
}

// AnalyticsRecord is what the analytics source returns for one ASIN.
type AnalyticsRecord struct {
	ASIN          string    `json:"asin"`
	Title         string    `json:"title"`
	Category      Category  `json:"category"`
	BuyBoxPrice   float64   `json:"buyBoxPrice"`
	SalesRank     int64     `json:"salesRank"`
	OfferCount    int       `json:"offerCount"`
	FBAOffers     int       `json:"fbaOffers"`
	FBMOffers     int       `json:"fbmOffers"`
	AmazonInStock bool      `json:"amazonInStock"`
	Fees          FeeResult `json:"fees"`
	Score         float64   `json:"score"`
	FetchedAt     time.Time `json:"fetchedAt"`
}

type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusSuccess ItemStatus = "success"
	StatusError   ItemStatus = "error"
)

// FailureKind says which step of item processing failed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureInvalid    FailureKind = "invalid"
	FailureResolution FailureKind = "resolution"
	FailureFetch      FailureKind = "fetch"
)

// BulkItem is one row of a bulk run.
type BulkItem struct {
	Identifier string           `json:"identifier"`
	ASIN       string           `json:"asin"`
	Status     ItemStatus       `json:"status"`
	Error      string           `json:"error,omitempty"`
	Failure    FailureKind      `json:"failure,omitempty"`
	Analytics  *AnalyticsRecord `json:"analytics,omitempty"`
}
