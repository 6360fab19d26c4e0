package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/guarzo/fbascout/internal/model"
)

// Entry is one persisted value. A zero ExpiresAt never expires.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt,omitempty"`
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Cache is a JSON-file backed key/value store with per-entry expiry. Every
// write rewrites the file through a temp file and rename, so a crash never
// leaves a half-written cache behind.
type Cache struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
	writeMu sync.Mutex
}

// New opens the cache stored at path, creating it on first Put. An empty
// path keeps entries in memory only. A corrupt file is logged and replaced.
func New(path string) (*Cache, error) {
	c := &Cache{
		path:    path,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read cache: %w", err)
	case len(data) == 0:
		return c, nil
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		slog.Warn("cache file unreadable, starting empty", "path", path, "err", err)
		c.entries = make(map[string]Entry)
		return c, nil
	}

	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
	return c, nil
}

// Get decodes the entry for key into target. Expired entries are dropped
// and reported as misses.
func (c *Cache) Get(key string, target any) (bool, error) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if entry.expired(now) {
		c.mu.Lock()
		if e, still := c.entries[key]; still && e.expired(now) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, target); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Put stores value under key. ttl <= 0 never expires.
func (c *Cache) Put(key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	now := c.now()
	entry := Entry{Data: data, StoredAt: now}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return c.persist()
}

// Len returns the number of stored entries, expired ones included until
// they are next read.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all cache entries
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	return c.persist()
}

// Remove deletes a specific cache entry
func (c *Cache) Remove(key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return c.persist()
}

func (c *Cache) persist() error {
	if c.path == "" {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache: %w", err)
	}
	return os.Rename(tmp.Name(), c.path)
}

// BuildKey joins key parts with '|'.
func BuildKey(parts ...string) string {
	return strings.Join(parts, "|")
}

// AnalyticsKey keys an analytics record by ASIN and the cost profile it was
// priced under.
func AnalyticsKey(asin string, profile model.CostProfile) string {
	return BuildKey("analytics", asin, ProfileKey(profile))
}

func UPCKey(upc string) string {
	return BuildKey("upc", upc)
}

// ProfileKey fingerprints the cost assumptions so analytics priced under
// different profiles never share an entry
func ProfileKey(p model.CostProfile) string {
	return fmt.Sprintf("%.2f/%.2f/%.2f/%.2f/%.4f/%d",
		p.ProductCost, p.ShippingCost, p.PrepCost, p.CustomFees, p.TaxRate, p.UnitsPerPack)
}
