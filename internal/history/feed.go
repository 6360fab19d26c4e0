package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Channel names one series of the encoded feed.
type Channel string

const (
	ChannelAmazon      Channel = "amazon"
	ChannelNew         Channel = "new"
	ChannelUsed        Channel = "used"
	ChannelBuyBox      Channel = "buy_box"
	ChannelNewFBA      Channel = "new_fba"
	ChannelNewFBM      Channel = "new_fbm"
	ChannelSalesRank   Channel = "sales_rank"
	ChannelAmazonStock Channel = "amazon_stock"
	ChannelOfferCount  Channel = "offer_count"
)

// channelOrder is the canonical channel order. The first non-empty channel
// in this order carries the timestamps when no primary is configured.
var channelOrder = []Channel{
	ChannelAmazon,
	ChannelNew,
	ChannelBuyBox,
	ChannelNewFBA,
	ChannelNewFBM,
	ChannelUsed,
	ChannelSalesRank,
	ChannelOfferCount,
	ChannelAmazonStock,
}

const (
	// Missing marks an absent raw value.
	Missing int64 = -1

	// InStockCode is the availability code meaning Amazon has the item in stock.
	InStockCode int64 = 0
)

var (
	// Epoch is the reference instant the feed's minute offsets count from.
	Epoch = time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

	// MinuteLength is the duration of one offset unit.
	MinuteLength = time.Minute
)

// Series is one channel: (offset, value) pairs laid out flat as
// [offset0, value0, offset1, value1, ...].
type Series []int64

// Len returns the number of complete pairs.
func (s Series) Len() int { return len(s) / 2 }

// UnmarshalJSON tolerates nulls, strings and non-finite numbers inside the
// array; each such element becomes Missing so positions are preserved.
func (s *Series) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("series: %w", err)
	}

	out := make(Series, len(raw))
	for i, elem := range raw {
		out[i] = parseElement(elem)
	}
	*s = out
	return nil
}

func parseElement(elem json.RawMessage) int64 {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(elem))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return Missing
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return Missing
	}
	return int64(f)
}

// RawFeed is the multi-channel encoded history of one product.
type RawFeed map[Channel]Series

// FeedFetcher supplies raw feeds for ASINs.
type FeedFetcher interface {
	FetchRawHistoryFeed(ctx context.Context, asin string) (RawFeed, error)
}

// OffsetFor converts an absolute time into a feed minute offset.
func OffsetFor(t time.Time) int64 {
	return int64(t.Sub(Epoch) / MinuteLength)
}

// TimeFor converts a feed minute offset into an absolute time.
func TimeFor(offset int64) time.Time {
	return Epoch.Add(time.Duration(offset) * MinuteLength)
}
