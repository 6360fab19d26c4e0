// Package ratelimit paces calls to the upstream product APIs.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// UPC lookup burst: the UPCitemdb trial tier tolerates 6 calls a minute.
const upcBurst = 6

// Limiter is a token bucket shared by every caller of one upstream API.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter returns a bucket holding up to burst tokens and gaining one
// every interval. It starts full.
func NewLimiter(burst int, interval time.Duration) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Every(interval), max(burst, 1))}
}

// NewPerMinute spreads tokensPerMinute over a minute and lets a full
// minute's budget go out as a burst, matching how Keepa meters its plans.
func NewPerMinute(tokensPerMinute int) *Limiter {
	tokensPerMinute = max(tokensPerMinute, 1)
	return NewLimiter(tokensPerMinute, time.Minute/time.Duration(tokensPerMinute))
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	if l.allowAt(now) {
		return nil
	}
	slog.Debug("rate limited, waiting for token", "tokens", l.tokensAt(now))
	return l.bucket.Wait(ctx)
}

func (l *Limiter) allowAt(t time.Time) bool {
	return l.bucket.AllowN(t, 1)
}

func (l *Limiter) tokensAt(t time.Time) int {
	return int(l.bucket.TokensAt(t))
}

// Limiters holds one limiter per upstream API.
type Limiters struct {
	Keepa     *Limiter
	UPCLookup *Limiter
}

// NewCustomRateLimiters builds the Keepa limiter from the plan's token
// rate and paces UPC lookups one per upcInterval.
func NewCustomRateLimiters(keepaTokensPerMinute int, upcInterval time.Duration) *Limiters {
	return &Limiters{
		Keepa:     NewPerMinute(keepaTokensPerMinute),
		UPCLookup: NewLimiter(upcBurst, upcInterval),
	}
}
