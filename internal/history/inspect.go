package history

import (
	"fmt"
	"math"
	"sort"

	"github.com/guarzo/fbascout/internal/model"
)

// Anomaly describes something in a feed that made decoding lossy.
type Anomaly struct {
	Channel Channel
	Reason  string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s: %s", a.Channel, a.Reason)
}

// Inspect lists the decode anomalies of a feed: empty channels, odd-length
// channels and channels with fewer pairs than the timestamp channel.
// Decoding never fails on these; Inspect exists so callers can log them.
func Inspect(feed RawFeed) []Anomaly {
	var out []Anomaly

	primary, ok := Decoder{}.primary(feed)
	if !ok {
		return []Anomaly{{Reason: "no channel carries timestamps"}}
	}
	primaryPairs := feed[primary].Len()

	for _, ch := range channelOrder {
		s := feed[ch]
		switch {
		case len(s) == 0:
			out = append(out, Anomaly{Channel: ch, Reason: "empty"})
			continue
		case len(s)%2 != 0:
			out = append(out, Anomaly{Channel: ch, Reason: "trailing unpaired element"})
		}
		if s.Len() < primaryPairs {
			out = append(out, Anomaly{
				Channel: ch,
				Reason:  fmt.Sprintf("%d pairs, timestamp channel %s has %d", s.Len(), primary, primaryPairs),
			})
		}
	}

	for ch := range feed {
		if _, known := channelKinds[ch]; !known {
			out = append(out, Anomaly{Channel: ch, Reason: "unknown channel ignored"})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Encode builds a feed from points, one pair per point in every channel so
// that positional alignment holds. Absent fields encode as Missing. Prices
// are converted to cents.
func Encode(points []model.HistoryPoint) RawFeed {
	feed := make(RawFeed, len(channelOrder))
	for _, ch := range channelOrder {
		feed[ch] = make(Series, 0, len(points)*2)
	}

	for _, p := range points {
		offset := OffsetFor(p.Timestamp)
		put := func(ch Channel, v int64) {
			feed[ch] = append(feed[ch], offset, v)
		}
		put(ChannelAmazon, cents(p.AmazonPrice))
		put(ChannelNew, cents(p.NewPrice))
		put(ChannelUsed, cents(p.UsedPrice))
		put(ChannelBuyBox, cents(p.BuyBoxPrice))
		put(ChannelNewFBA, cents(p.NewFBAPrice))
		put(ChannelNewFBM, cents(p.NewFBMPrice))
		put(ChannelSalesRank, intOrMissing(p.SalesRank))
		put(ChannelOfferCount, intOrMissing(p.OfferCount))

		stock := Missing
		if p.AmazonInStock != nil {
			stock = InStockCode
			if !*p.AmazonInStock {
				stock = 1
			}
		}
		put(ChannelAmazonStock, stock)
	}
	return feed
}

func cents(v *float64) int64 {
	if v == nil {
		return Missing
	}
	return int64(math.Round(*v * 100))
}

func intOrMissing(v *int64) int64 {
	if v == nil {
		return Missing
	}
	return *v
}
