package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/monitoring"
	"github.com/guarzo/fbascout/internal/storage"
	"github.com/guarzo/fbascout/internal/testutil"
)

func record(asin string, price float64) *model.AnalyticsRecord {
	return &model.AnalyticsRecord{ASIN: asin, Title: "Item " + asin, BuyBoxPrice: price, Score: 50,
		Fees: model.FeeResult{NetProfit: 5}}
}

func staticSource(ids ...string) func() ([]string, error) {
	return func() ([]string, error) { return ids, nil }
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	s, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunOnce_StoresReportsAndAlertsOnChange(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Records: map[string]*model.AnalyticsRecord{
		"B000000001": record("B000000001", 40),
		"B000000002": record("B000000002", 20),
	}}
	proc := bulk.NewProcessor(bulk.Config{}, &testutil.FakeResolver{}, fetcher)
	store := newStore(t)

	w := NewWatcher(proc, store, staticSource("B000000001", "B000000002"), model.DefaultCostProfile(), monitoring.DefaultAlertConfig())

	var observed int
	w.OnRun(func(rep *bulk.Report, alerts []monitoring.Alert) { observed++ })

	ctx := context.Background()
	first, alerts, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts, "first run has nothing to compare against")
	assert.Equal(t, "2/2 succeeded", first.Summary())

	fetcher.Records["B000000001"] = record("B000000001", 25)
	second, alerts, err := w.RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, monitoring.AlertPriceDrop, alerts[0].Type)
	assert.Equal(t, "B000000001", alerts[0].ASIN)

	reps, err := store.ListReports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, reps, 2)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, observed)
}

func TestRunOnce_SeedsPreviousFromStore(t *testing.T) {
	fetcher := &testutil.FakeFetcher{Records: map[string]*model.AnalyticsRecord{
		"B000000001": record("B000000001", 40),
	}}
	proc := bulk.NewProcessor(bulk.Config{}, &testutil.FakeResolver{}, fetcher)
	store := newStore(t)
	ctx := context.Background()

	_, _, err := NewWatcher(proc, store, staticSource("B000000001"), model.DefaultCostProfile(), monitoring.DefaultAlertConfig()).RunOnce(ctx)
	require.NoError(t, err)

	fetcher.Records["B000000001"] = record("B000000001", 60)
	_, alerts, err := NewWatcher(proc, store, staticSource("B000000001"), model.DefaultCostProfile(), monitoring.DefaultAlertConfig()).RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, monitoring.AlertPriceIncrease, alerts[0].Type)
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	fetcher := &testutil.FakeFetcher{
		Records: map[string]*model.AnalyticsRecord{"B000000001": record("B000000001", 40)},
		Delay:   300 * time.Millisecond,
	}
	proc := bulk.NewProcessor(bulk.Config{}, &testutil.FakeResolver{}, fetcher)
	w := NewWatcher(proc, nil, staticSource("B000000001"), model.DefaultCostProfile(), monitoring.DefaultAlertConfig())

	done := make(chan error, 1)
	go func() {
		_, _, err := w.RunOnce(context.Background())
		done <- err
	}()

	require.Eventually(t, w.running.Load, time.Second, 5*time.Millisecond)
	_, _, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, <-done)
}

func TestRunOnce_RejectedBatch(t *testing.T) {
	proc := bulk.NewProcessor(bulk.Config{}, &testutil.FakeResolver{}, &testutil.FakeFetcher{})
	w := NewWatcher(proc, nil, staticSource(), model.DefaultCostProfile(), monitoring.DefaultAlertConfig())

	_, _, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, bulk.ErrEmptyBatch)
	assert.False(t, w.running.Load())
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# sourcing list\nB000000001, B000000002\n\n883412740951\n"), 0o644))

	ids, err := FileSource(path)()
	require.NoError(t, err)
	assert.Equal(t, []string{"B000000001", "B000000002", "883412740951"}, ids)

	_, err = FileSource(filepath.Join(t.TempDir(), "missing.txt"))()
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	proc := bulk.NewProcessor(bulk.Config{}, &testutil.FakeResolver{}, &testutil.FakeFetcher{})
	w := NewWatcher(proc, nil, staticSource("B000000001"), model.DefaultCostProfile(), monitoring.DefaultAlertConfig())

	assert.Error(t, w.Start(context.Background(), "not a schedule"))

	require.NoError(t, w.Start(context.Background(), "@every 1h"))
	w.Stop()
	w.Stop()
}
