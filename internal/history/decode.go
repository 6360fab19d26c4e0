package history

import (
	"github.com/guarzo/fbascout/internal/model"
)

type channelKind int

const (
	kindMoney channelKind = iota
	kindRank
	kindCount
	kindStock
)

var channelKinds = map[Channel]channelKind{
	ChannelAmazon:      kindMoney,
	ChannelNew:         kindMoney,
	ChannelUsed:        kindMoney,
	ChannelBuyBox:      kindMoney,
	ChannelNewFBA:      kindMoney,
	ChannelNewFBM:      kindMoney,
	ChannelSalesRank:   kindRank,
	ChannelOfferCount:  kindCount,
	ChannelAmazonStock: kindStock,
}

// Decoder turns a RawFeed into history points. The zero value is ready to use.
type Decoder struct {
	// Primary forces the channel whose offsets become point timestamps.
	// Empty selects the first non-empty channel in canonical order.
	Primary Channel
}

// Decode decodes feed with the default Decoder.
func Decode(feed RawFeed) []model.HistoryPoint {
	return Decoder{}.Decode(feed)
}

// Decode walks the primary channel pair by pair. Every other channel is read
// at the same positional index as the primary pair, not at the same offset.
// Values that are absent, non-positive (prices and rank) or out of range for
// the channel leave the field nil. A trailing unpaired element is ignored.
// The feed is not modified and the output keeps the input offset order.
func (d Decoder) Decode(feed RawFeed) []model.HistoryPoint {
	primary, ok := d.primary(feed)
	if !ok {
		return []model.HistoryPoint{}
	}
	series := feed[primary]

	points := make([]model.HistoryPoint, 0, series.Len())
	lastOffset := int64(0)
	for i := 0; i+1 < len(series); i += 2 {
		offset := series[i]
		point := model.HistoryPoint{Timestamp: TimeFor(offset)}
		for _, ch := range channelOrder {
			applyChannel(&point, ch, feed[ch], i+1)
		}

		// Repeated offsets collapse to the later pairing.
		if len(points) > 0 && offset == lastOffset {
			points[len(points)-1] = point
			continue
		}
		points = append(points, point)
		lastOffset = offset
	}
	return points
}

// Latest reads the current value of every channel from that channel's own
// last complete pair, independent of how the channels align. A sentinel in
// the last pair leaves the field nil; older pairs are not consulted. The
// timestamp is the newest last offset across channels.
func Latest(feed RawFeed) model.HistoryPoint {
	var p model.HistoryPoint
	for _, ch := range channelOrder {
		s := feed[ch]
		if s.Len() == 0 {
			continue
		}
		idx := 2*s.Len() - 1
		applyChannel(&p, ch, s, idx)
		if at := TimeFor(s[idx-1]); at.After(p.Timestamp) {
			p.Timestamp = at
		}
	}
	return p
}

func (d Decoder) primary(feed RawFeed) (Channel, bool) {
	if d.Primary != "" {
		return d.Primary, len(feed[d.Primary]) >= 2
	}
	for _, ch := range channelOrder {
		if len(feed[ch]) >= 2 {
			return ch, true
		}
	}
	return "", false
}

func applyChannel(p *model.HistoryPoint, ch Channel, s Series, idx int) {
	if idx >= len(s) {
		return
	}
	raw := s[idx]

	switch channelKinds[ch] {
	case kindMoney:
		if raw <= 0 {
			return
		}
		v := float64(raw) / 100
		switch ch {
		case ChannelAmazon:
			p.AmazonPrice = &v
		case ChannelNew:
			p.NewPrice = &v
		case ChannelUsed:
			p.UsedPrice = &v
		case ChannelBuyBox:
			p.BuyBoxPrice = &v
		case ChannelNewFBA:
			p.NewFBAPrice = &v
		case ChannelNewFBM:
			p.NewFBMPrice = &v
		}
	case kindRank:
		if raw <= 0 {
			return
		}
		v := raw
		p.SalesRank = &v
	case kindCount:
		if raw < 0 {
			return
		}
		v := raw
		p.OfferCount = &v
	case kindStock:
		if raw < 0 {
			return
		}
		v := raw == InStockCode
		p.AmazonInStock = &v
	}
}
