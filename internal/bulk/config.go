package bulk

import "time"

// Config controls batch limits and pacing.
type Config struct {
	MaxBatchSize   int           `yaml:"max_batch_size"`
	ItemDelay      time.Duration `yaml:"item_delay"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
}

// DefaultConfig returns the production limits: 50 identifiers per batch, one
// second between items, 15s to resolve a UPC and 30s to fetch analytics.
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:   50,
		ItemDelay:      time.Second,
		ResolveTimeout: 15 * time.Second,
		FetchTimeout:   30 * time.Second,
	}
}

// normalized fills unset limits from DefaultConfig. A zero ItemDelay is kept.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = def.MaxBatchSize
	}
	if c.ItemDelay < 0 {
		c.ItemDelay = 0
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = def.ResolveTimeout
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	return c
}
