package keepa

import (
	"github.com/guarzo/fbascout/internal/history"
)

// Keepa csv indices used by the feed mapping.
const (
	csvAmazon     = 0
	csvNew        = 1
	csvUsed       = 2
	csvSalesRank  = 3
	csvNewFBM     = 7
	csvNewFBA     = 10
	csvCountNew   = 11
	csvBuyBox     = 18
	csvFieldCount = 19
)

// Shipping-inclusive csv fields are laid out as (time, price, shipping)
// triples rather than pairs.
var tripleFields = map[int]bool{
	csvNewFBM: true,
	csvBuyBox: true,
}

var csvChannels = map[int]history.Channel{
	csvAmazon:    history.ChannelAmazon,
	csvNew:       history.ChannelNew,
	csvUsed:      history.ChannelUsed,
	csvSalesRank: history.ChannelSalesRank,
	csvNewFBM:    history.ChannelNewFBM,
	csvNewFBA:    history.ChannelNewFBA,
	csvCountNew:  history.ChannelOfferCount,
	csvBuyBox:    history.ChannelBuyBox,
}

type category struct {
	CatID int64  `json:"catId"`
	Name  string `json:"name"`
}

type offer struct {
	OfferID   int    `json:"offerId"`
	SellerID  string `json:"sellerId"`
	IsFBA     *bool  `json:"isFBA"`
	IsAmazon  bool   `json:"isAmazon"`
	Condition int    `json:"condition"`
}

// product is the subset of Keepa's product object we read.
type product struct {
	ASIN            string           `json:"asin"`
	Title           string           `json:"title"`
	CategoryTree    []category       `json:"categoryTree"`
	CSV             []history.Series `json:"csv"`
	PackageLength   int64            `json:"packageLength"`
	PackageWidth    int64            `json:"packageWidth"`
	PackageHeight   int64            `json:"packageHeight"`
	PackageWeight   int64            `json:"packageWeight"`
	Offers          []offer          `json:"offers"`
	LiveOffersOrder []int            `json:"liveOffersOrder"`
}

func (p *product) field(i int) history.Series {
	if i < 0 || i >= len(p.CSV) {
		return nil
	}
	return p.CSV[i]
}

// Feed maps the product's csv arrays onto history channels.
func (p *product) Feed() history.RawFeed {
	feed := history.RawFeed{}
	for idx, ch := range csvChannels {
		s := p.field(idx)
		if s == nil {
			continue
		}
		if tripleFields[idx] {
			s = collapseTriples(s)
		}
		feed[ch] = s
	}
	if amazon, ok := feed[history.ChannelAmazon]; ok {
		feed[history.ChannelAmazonStock] = stockFromAmazon(amazon)
	}
	return feed
}

// collapseTriples turns (time, price, shipping) into (time, landed price).
// A missing shipping component leaves the price as is.
func collapseTriples(s history.Series) history.Series {
	out := make(history.Series, 0, len(s)/3*2)
	for i := 0; i+2 < len(s); i += 3 {
		price, ship := s[i+1], s[i+2]
		if price > 0 && ship > 0 {
			price += ship
		}
		out = append(out, s[i], price)
	}
	return out
}

// stockFromAmazon derives availability from the Amazon price channel: a
// price means in stock, Keepa's -1 means out of stock.
func stockFromAmazon(amazon history.Series) history.Series {
	out := make(history.Series, 0, len(amazon))
	for i := 0; i+1 < len(amazon); i += 2 {
		code := history.Missing
		switch v := amazon[i+1]; {
		case v > 0:
			code = history.InStockCode
		case v == -1:
			code = 1
		}
		out = append(out, amazon[i], code)
	}
	return out
}

// rootCategory returns the top-level category name, if any.
func (p *product) rootCategory() string {
	if len(p.CategoryTree) == 0 {
		return ""
	}
	return p.CategoryTree[0].Name
}

// countOffers splits live new offers by fulfillment type. When Keepa does
// not flag isFBA the split is approximate: even positions in the live order
// are counted as FBA.
func (p *product) countOffers() (fba, fbm int) {
	live := p.LiveOffersOrder
	if len(live) == 0 {
		live = make([]int, len(p.Offers))
		for i := range live {
			live[i] = i
		}
	}

	for pos, idx := range live {
		if idx < 0 || idx >= len(p.Offers) {
			continue
		}
		o := p.Offers[idx]
		if o.Condition > 1 {
			continue
		}
		isFBA := pos%2 == 0
		if o.IsFBA != nil {
			isFBA = *o.IsFBA
		}
		if isFBA {
			fba++
		} else {
			fbm++
		}
	}
	return fba, fbm
}
