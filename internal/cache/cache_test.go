package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/fbascout/internal/model"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newClockedCache(t *testing.T, path string) (*Cache, *fakeClock) {
	t.Helper()
	c, err := New(path)
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	c.now = clock.now
	return c, clock
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newClockedCache(t, filepath.Join(t.TempDir(), "cache.json"))

	rec := model.AnalyticsRecord{ASIN: "B07XJ8C8F5", Title: "Wireless Earbuds", BuyBoxPrice: 49.99, SalesRank: 1200}
	require.NoError(t, c.Put("k", rec, time.Hour))

	var got model.AnalyticsRecord
	ok, err := c.Get("k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.ASIN, got.ASIN)
	assert.Equal(t, rec.BuyBoxPrice, got.BuyBoxPrice)
	assert.Equal(t, rec.SalesRank, got.SalesRank)

	ok, err = c.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newClockedCache(t, "")

	require.NoError(t, c.Put(UPCKey("883412740951"), "B07XJ8C8F5", 10*time.Minute))
	require.NoError(t, c.Put("forever", 1, 0))

	var asin string
	clock.advance(9 * time.Minute)
	ok, _ := c.Get(UPCKey("883412740951"), &asin)
	assert.True(t, ok)

	clock.advance(2 * time.Minute)
	ok, _ = c.Get(UPCKey("883412740951"), &asin)
	assert.False(t, ok, "entry past its ttl is a miss")
	assert.Equal(t, 1, c.Len(), "expired entry is dropped on read")

	clock.advance(365 * 24 * time.Hour)
	var n int
	ok, _ = c.Get("forever", &n)
	assert.True(t, ok, "zero ttl never expires")
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	c, _ := newClockedCache(t, path)

	profile := model.DefaultCostProfile()
	key := AnalyticsKey("B07XJ8C8F5", profile)
	require.NoError(t, c.Put(key, model.AnalyticsRecord{ASIN: "B07XJ8C8F5", Fees: model.FeeResult{TotalFees: 5.42}}, 0))

	reopened, err := New(path)
	require.NoError(t, err)

	var got model.AnalyticsRecord
	ok, err := reopened.Get(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.42, got.Fees.TotalFees)

	leftovers, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files are renamed into place")
}

func TestCache_ReopenDropsExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, err := New(path)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	require.NoError(t, c.Put("stale", "x", time.Hour))
	require.NoError(t, c.Put("fresh", "y", 0))

	reopened, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestCache_ClearAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c, _ := newClockedCache(t, path)

	for _, upc := range []string{"883412740951", "012345678905", "036000291452"} {
		require.NoError(t, c.Put(UPCKey(upc), "B000000001", time.Hour))
	}
	require.NoError(t, c.Remove(UPCKey("012345678905")))
	assert.Equal(t, 2, c.Len())

	var asin string
	ok, _ := c.Get(UPCKey("012345678905"), &asin)
	assert.False(t, ok)

	require.NoError(t, c.Clear())
	assert.Zero(t, c.Len())

	reopened, err := New(path)
	require.NoError(t, err)
	assert.Zero(t, reopened.Len(), "clear is persisted")
}

func TestCache_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c, err := New(path)
	require.NoError(t, err)
	assert.Zero(t, c.Len())

	require.NoError(t, c.Put("k", "v", 0))
	reopened, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len())
}

func TestCache_DecodeMismatch(t *testing.T) {
	c, _ := newClockedCache(t, "")
	require.NoError(t, c.Put("k", "not a record", 0))

	var rec model.AnalyticsRecord
	ok, err := c.Get("k", &rec)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestCache_ConcurrentWriters(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				key := fmt.Sprintf("B%09d", w*10+i)
				assert.NoError(t, c.Put(key, i, time.Hour))
				var got int
				ok, err := c.Get(key, &got)
				assert.NoError(t, err)
				assert.True(t, ok)
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 80, c.Len())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "upc|883412740951", UPCKey("883412740951"))
	assert.Equal(t, "a|b|c", BuildKey("a", "b", "c"))

	base := model.DefaultCostProfile()
	other := base
	other.ProductCost += 0.5

	assert.Equal(t, AnalyticsKey("B07XJ8C8F5", base), AnalyticsKey("B07XJ8C8F5", base))
	assert.NotEqual(t, AnalyticsKey("B07XJ8C8F5", base), AnalyticsKey("B07XJ8C8F5", other),
		"cost profile is part of the analytics key")
	assert.Contains(t, AnalyticsKey("B07XJ8C8F5", base), "analytics|B07XJ8C8F5|")
}
