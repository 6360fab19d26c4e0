package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/keepa"
	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/monitoring"
)

// Config is the full application configuration.
type Config struct {
	Batch   bulk.Config       `yaml:"batch"`
	Costs   model.CostProfile `yaml:"costs"`
	Keepa   keepa.Config      `yaml:"keepa"`
	UPC     UPCConfig         `yaml:"upc"`
	Storage StorageConfig     `yaml:"storage"`
	HTTP    HTTPConfig        `yaml:"http"`
	Log     LogConfig         `yaml:"log"`
	Watch   WatchConfig       `yaml:"watch"`
}

type UPCConfig struct {
	ItemDBURL string `yaml:"itemdb_url"`
	// ItemDB enables the UPCitemdb fallback after Keepa's code lookup.
	ItemDB bool `yaml:"itemdb"`
}

type StorageConfig struct {
	DSN       string        `yaml:"dsn"` // SQLite file, or ":memory:"
	DataDir   string        `yaml:"data_dir"`
	CachePath string        `yaml:"cache_path"` // empty keeps the cache in memory
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type HTTPConfig struct {
	Addr   string        `yaml:"addr"`
	JobTTL time.Duration `yaml:"job_ttl"` // how long finished batches stay queryable
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type WatchConfig struct {
	Schedule string                 `yaml:"schedule"` // cron spec
	File     string                 `yaml:"file"`     // identifiers, one per line
	Alerts   monitoring.AlertConfig `yaml:"alerts"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Batch: bulk.DefaultConfig(),
		Costs: model.DefaultCostProfile(),
		Keepa: keepa.DefaultConfig(),
		UPC:   UPCConfig{ItemDBURL: "https://api.upcitemdb.com/prod/trial"},
		Storage: StorageConfig{
			DSN:      "fbascout.db",
			DataDir:  "data",
			CacheTTL: 6 * time.Hour,
		},
		HTTP: HTTPConfig{Addr: ":8080", JobTTL: time.Hour},
		Log:  LogConfig{Level: "info", Format: "text"},
		Watch: WatchConfig{
			Schedule: "@every 6h",
			File:     "watchlist.txt",
			Alerts:   monitoring.DefaultAlertConfig(),
		},
	}
}

// Load reads .env (if present), then the YAML file at path over the
// defaults, then environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOptional is Load for a path that may not exist.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KEEPA_API_KEY"); v != "" {
		cfg.Keepa.APIKey = v
	}
	if v := os.Getenv("FBASCOUT_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
}

func setDefaults(cfg *Config) {
	def := Default()
	if cfg.Batch.MaxBatchSize <= 0 {
		cfg.Batch.MaxBatchSize = def.Batch.MaxBatchSize
	}
	if cfg.Costs.UnitsPerPack <= 0 {
		cfg.Costs.UnitsPerPack = 1
	}
	if cfg.Keepa.BaseURL == "" {
		cfg.Keepa.BaseURL = def.Keepa.BaseURL
	}
	if cfg.Keepa.Domain == 0 {
		cfg.Keepa.Domain = def.Keepa.Domain
	}
	if cfg.Keepa.TokensPerMinute <= 0 {
		cfg.Keepa.TokensPerMinute = def.Keepa.TokensPerMinute
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = def.Storage.DSN
	}
	if cfg.Storage.CacheTTL <= 0 {
		cfg.Storage.CacheTTL = def.Storage.CacheTTL
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = def.HTTP.Addr
	}
	if cfg.HTTP.JobTTL <= 0 {
		cfg.HTTP.JobTTL = def.HTTP.JobTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	var problems []string
	if c.Costs.ProductCost < 0 || c.Costs.ShippingCost < 0 || c.Costs.PrepCost < 0 || c.Costs.CustomFees < 0 {
		problems = append(problems, "costs must not be negative")
	}
	if c.Costs.TaxRate < 0 || c.Costs.TaxRate > 1 {
		problems = append(problems, "costs.tax_rate must be a fraction between 0 and 1")
	}
	switch strings.ToUpper(c.Watch.Alerts.MinSeverity) {
	case "", "LOW", "MEDIUM", "HIGH":
	default:
		problems = append(problems, fmt.Sprintf("watch.alerts.min_severity %q is not LOW, MEDIUM or HIGH", c.Watch.Alerts.MinSeverity))
	}
	if c.Batch.ItemDelay < 0 {
		problems = append(problems, "batch.item_delay must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not text or json", c.Log.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NewLogger builds the slog logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(l.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
