package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/guarzo/fbascout/internal/model"
)

const hotCapacity = 500

// AnalyticsSource is the upstream a CachedFetcher fronts.
type AnalyticsSource interface {
	FetchAnalytics(ctx context.Context, asin string, profile model.CostProfile) (*model.AnalyticsRecord, error)
}

// CachedFetcher serves analytics from a two-layer cache: a small in-memory
// LRU for the current process and the JSON file cache across runs. Misses
// go upstream; errors are never cached.
type CachedFetcher struct {
	upstream AnalyticsSource
	hot      *LRU[model.AnalyticsRecord]
	disk     *Cache
	ttl      time.Duration
}

// NewCachedFetcher wraps upstream. disk may be nil for a memory-only cache.
func NewCachedFetcher(upstream AnalyticsSource, disk *Cache, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		upstream: upstream,
		hot:      NewLRU[model.AnalyticsRecord](hotCapacity, ttl),
		disk:     disk,
		ttl:      ttl,
	}
}

// FetchAnalytics implements bulk.AnalyticsFetcher
func (f *CachedFetcher) FetchAnalytics(ctx context.Context, asin string, profile model.CostProfile) (*model.AnalyticsRecord, error) {
	key := AnalyticsKey(asin, profile)

	if rec, ok := f.hot.Get(key); ok {
		return &rec, nil
	}

	if f.disk != nil {
		var rec model.AnalyticsRecord
		found, err := f.disk.Get(key, &rec)
		if err != nil {
			slog.Debug("analytics cache read failed", "asin", asin, "err", err)
		}
		if found {
			f.hot.Set(key, rec)
			return &rec, nil
		}
	}

	rec, err := f.upstream.FetchAnalytics(ctx, asin, profile)
	if err != nil || rec == nil {
		return rec, err
	}

	f.hot.Set(key, *rec)
	if f.disk != nil {
		if err := f.disk.Put(key, rec, f.ttl); err != nil {
			slog.Warn("analytics cache write failed", "asin", asin, "err", err)
		}
	}
	return rec, nil
}

// Stats reports hot-layer hit rates.
func (f *CachedFetcher) Stats() Stats {
	return f.hot.Stats()
}
