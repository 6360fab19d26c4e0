package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/cache"
	"github.com/guarzo/fbascout/internal/config"
	"github.com/guarzo/fbascout/internal/keepa"
	"github.com/guarzo/fbascout/internal/metrics"
	"github.com/guarzo/fbascout/internal/ratelimit"
	"github.com/guarzo/fbascout/internal/storage"
	"github.com/guarzo/fbascout/internal/upc"
)

// upcLookupInterval matches the UPCitemdb trial tier.
const upcLookupInterval = 10 * time.Second

// app is the wired dependency graph shared by the subcommands.
type app struct {
	cfg       *config.Config
	keepa     *keepa.Client
	upcDB     *upc.Database
	cache     *cache.Cache
	analytics *cache.CachedFetcher
	metrics   *metrics.Metrics
	processor *bulk.Processor

	store *storage.SQLiteStore
}

func newApp(cfg *config.Config) (*app, error) {
	limiters := ratelimit.NewCustomRateLimiters(cfg.Keepa.TokensPerMinute, upcLookupInterval)
	kc := keepa.NewClient(cfg.Keepa, limiters.Keepa)
	if !kc.Available() {
		slog.Warn("KEEPA_API_KEY not set; analytics lookups will fail")
	}

	db, err := upc.NewDatabase(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	disk, err := cache.New(cfg.Storage.CachePath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	var remotes []upc.NamedRemote
	if kc.Available() {
		remotes = append(remotes, upc.NamedRemote{Name: "keepa", Remote: kc})
	}
	if cfg.UPC.ItemDB {
		remotes = append(remotes, upc.NamedRemote{
			Name:   "upcitemdb",
			Remote: upc.NewItemDBClient(cfg.UPC.ItemDBURL, limiters.UPCLookup),
		})
	}

	m := metrics.New()
	resolver := m.InstrumentResolver(upc.NewResolver(db, disk, cfg.Storage.CacheTTL, remotes...))
	cached := cache.NewCachedFetcher(kc, disk, cfg.Storage.CacheTTL)
	fetcher := m.InstrumentFetcher(cached)

	return &app{
		cfg:       cfg,
		keepa:     kc,
		upcDB:     db,
		cache:     disk,
		analytics: cached,
		metrics:   m,
		processor: bulk.NewProcessor(cfg.Batch, resolver, fetcher),
	}, nil
}

// openStore opens the run history database on first use.
func (a *app) openStore() (*storage.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := storage.NewSQLiteStore(a.cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) Close() error {
	var errs []error
	if err := a.upcDB.Save(); err != nil {
		errs = append(errs, fmt.Errorf("save upc database: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
