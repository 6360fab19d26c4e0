package upc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guarzo/fbascout/internal/cache"
)

var (
	// ErrNoMapping means no source knows an ASIN for the code.
	ErrNoMapping = errors.New("no ASIN mapping for UPC")
	// ErrRateLimited means a remote refused the lookup for quota reasons.
	ErrRateLimited = errors.New("UPC lookup rate limited")
)

// Remote is an upstream UPC to ASIN lookup.
type Remote interface {
	ResolveIdentifier(ctx context.Context, code string) (string, error)
}

// NamedRemote labels a Remote so resolved mappings record where they came from.
type NamedRemote struct {
	Name   string
	Remote Remote
}

// Resolver implements bulk.Resolver by consulting, in order, the local
// mapping database, the lookup cache and each remote. Remote answers are
// written back to both the cache and the database.
type Resolver struct {
	db      *Database
	cache   *cache.Cache
	remotes []NamedRemote
	ttl     time.Duration
}

// NewResolver builds a resolution chain. db and c may be nil.
func NewResolver(db *Database, c *cache.Cache, ttl time.Duration, remotes ...NamedRemote) *Resolver {
	return &Resolver{db: db, cache: c, remotes: remotes, ttl: ttl}
}

// ResolveIdentifier returns the ASIN for a UPC/EAN code.
func (r *Resolver) ResolveIdentifier(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)

	if r.db != nil {
		if m, ok := r.db.Lookup(code); ok && m.ASIN != "" {
			return m.ASIN, nil
		}
	}

	key := cache.UPCKey(Normalize(code))
	if r.cache != nil {
		var asin string
		if found, err := r.cache.Get(key, &asin); err == nil && found && asin != "" {
			return asin, nil
		}
	}

	var errs []error
	for _, remote := range r.remotes {
		asin, err := remote.Remote.ResolveIdentifier(ctx, code)
		if err != nil {
			slog.Debug("upc remote lookup failed", "source", remote.Name, "upc", code, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", remote.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		asin = strings.ToUpper(strings.TrimSpace(asin))
		if asin == "" {
			continue
		}
		r.remember(code, asin, remote.Name)
		return asin, nil
	}

	if len(errs) == 0 {
		return "", ErrNoMapping
	}
	return "", fmt.Errorf("resolve %s: %w", code, errors.Join(errs...))
}

func (r *Resolver) remember(code, asin, source string) {
	if r.cache != nil {
		if err := r.cache.Put(cache.UPCKey(Normalize(code)), asin, r.ttl); err != nil {
			slog.Warn("upc cache write failed", "upc", code, "err", err)
		}
	}
	if r.db != nil {
		r.db.Put(Mapping{UPC: code, ASIN: asin, Source: source, Confidence: 0.9})
		if err := r.db.Save(); err != nil {
			slog.Warn("upc database save failed", "err", err)
		}
	}
}
