package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guarzo/fbascout/internal/model"
)

// ErrNotMapped is returned by the fakes for identifiers they don't know.
var ErrNotMapped = errors.New("testutil: identifier not mapped")

// FakeResolver resolves UPCs from a fixed map. Delay, when set, is applied
// to every call and honours context cancellation.
type FakeResolver struct {
	Mappings map[string]string
	Errors   map[string]error
	Delay    time.Duration

	mu    sync.Mutex
	calls []string
}

// ResolveIdentifier implements bulk.Resolver
func (r *FakeResolver) ResolveIdentifier(ctx context.Context, upc string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, upc)
	r.mu.Unlock()

	if err := delay(ctx, r.Delay); err != nil {
		return "", err
	}
	if err, ok := r.Errors[upc]; ok {
		return "", err
	}
	if asin, ok := r.Mappings[upc]; ok {
		return asin, nil
	}
	return "", ErrNotMapped
}

// Calls returns the identifiers passed to ResolveIdentifier, in order
func (r *FakeResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// FakeFetcher serves analytics from a fixed map, or from a factory when
// Generate is set.
type FakeFetcher struct {
	Records  map[string]*model.AnalyticsRecord
	Errors   map[string]error
	Delay    time.Duration
	Generate *TestDataFactory

	mu       sync.Mutex
	calls    []string
	profiles []model.CostProfile
}

// FetchAnalytics implements bulk.AnalyticsFetcher
func (f *FakeFetcher) FetchAnalytics(ctx context.Context, asin string, profile model.CostProfile) (*model.AnalyticsRecord, error) {
	f.mu.Lock()
	f.calls = append(f.calls, asin)
	f.profiles = append(f.profiles, profile)
	f.mu.Unlock()

	if err := delay(ctx, f.Delay); err != nil {
		return nil, err
	}
	if err, ok := f.Errors[asin]; ok {
		return nil, err
	}
	if rec, ok := f.Records[asin]; ok {
		if rec == nil {
			return nil, nil
		}
		cp := *rec
		return &cp, nil
	}
	if f.Generate != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.Generate.GenerateAnalytics(asin), nil
	}
	return nil, ErrNotMapped
}

// Calls returns the ASINs passed to FetchAnalytics, in order
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Profiles returns the cost profiles passed to FetchAnalytics, in order
func (f *FakeFetcher) Profiles() []model.CostProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CostProfile(nil), f.profiles...)
}

func delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
