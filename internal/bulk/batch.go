package bulk

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/guarzo/fbascout/internal/identifier"
	"github.com/guarzo/fbascout/internal/model"
)

// Resolver turns a UPC/EAN into the canonical ASIN.
type Resolver interface {
	ResolveIdentifier(ctx context.Context, upc string) (string, error)
}

// AnalyticsFetcher returns current marketplace analytics for one ASIN,
// priced with the given cost profile.
type AnalyticsFetcher interface {
	FetchAnalytics(ctx context.Context, asin string, profile model.CostProfile) (*model.AnalyticsRecord, error)
}

// State is the lifecycle position of a batch.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Progress is an immutable view of a batch after its most recent step.
type Progress struct {
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Current   string `json:"current,omitempty"`
	State     State  `json:"state"`
	Cancelled bool   `json:"cancelled"`
	Reason    string `json:"reason,omitempty"`
}

// Fraction returns Completed/Total, or 0 for an empty batch.
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total)
}

// Batch processes one list of identifiers strictly in order. Run is the only
// writer; Snapshot may be called from any goroutine.
type Batch struct {
	id       string
	ids      []string
	profile  model.CostProfile
	cfg      Config
	resolver Resolver
	fetcher  AnalyticsFetcher

	progress atomic.Pointer[Progress]
	started  atomic.Bool

	wait func(ctx context.Context, d time.Duration) error
	log  *slog.Logger
}

// NewBatch prepares a batch in the idle state. The identifier slice is copied.
func NewBatch(ids []string, profile model.CostProfile, cfg Config, resolver Resolver, fetcher AnalyticsFetcher) *Batch {
	b := &Batch{
		id:       uuid.NewString(),
		ids:      append([]string(nil), ids...),
		profile:  profile,
		cfg:      cfg.normalized(),
		resolver: resolver,
		fetcher:  fetcher,
		wait:     sleepContext,
	}
	b.log = slog.Default().With("batch", b.id)
	b.progress.Store(&Progress{Total: len(b.ids), State: StateIdle})
	return b
}

// ID is the batch's unique identifier.
func (b *Batch) ID() string { return b.id }

// Snapshot returns the latest published progress.
func (b *Batch) Snapshot() Progress { return *b.progress.Load() }

func (b *Batch) publish(p Progress, onProgress func(Progress)) {
	b.progress.Store(&p)
	if onProgress != nil {
		onProgress(p)
	}
}

// Run processes every identifier and returns one item per processed input in
// input order. onProgress, if set, is called after each item and once more
// when the batch finishes.
//
// A batch that fails pre-flight validation ends Failed and Run returns a
// *ValidationError with no items. Otherwise the batch ends Completed and the
// error is nil, even if every item failed. Cancelling ctx stops the batch
// before the next item. An item already in flight runs to completion under
// its own timeouts; items already recorded are returned and the final
// Progress has Cancelled set.
func (b *Batch) Run(ctx context.Context, onProgress func(Progress)) ([]model.BulkItem, error) {
	if !b.started.CompareAndSwap(false, true) {
		return nil, ErrBatchStarted
	}

	total := len(b.ids)
	if err := validate(b.ids, b.cfg.MaxBatchSize); err != nil {
		b.log.Warn("batch rejected", "err", err)
		b.publish(Progress{Total: total, State: StateFailed, Reason: err.Error()}, onProgress)
		return nil, err
	}

	p := Progress{Total: total, State: StateRunning}
	b.publish(p, nil)
	b.log.Info("batch started", "items", total)

	items := make([]model.BulkItem, 0, total)
	for i, raw := range b.ids {
		if ctx.Err() != nil {
			p.Cancelled = true
			break
		}

		item := b.processItem(ctx, raw)
		items = append(items, item)

		p.Completed++
		p.Current = raw
		if item.Status == model.StatusSuccess {
			p.Succeeded++
		} else {
			p.Failed++
		}
		b.publish(p, onProgress)

		if i < total-1 && b.cfg.ItemDelay > 0 {
			// A cancelled wait is picked up by the check at the top of the loop.
			_ = b.wait(ctx, b.cfg.ItemDelay)
		}
	}

	p.State = StateCompleted
	p.Current = ""
	b.publish(p, onProgress)
	b.log.Info("batch completed",
		"succeeded", p.Succeeded,
		"total", total,
		"processed", p.Completed,
		"cancelled", p.Cancelled)
	return items, nil
}

// processItem runs one identifier through classify, resolve and fetch. It
// never returns an error; failures are recorded on the item.
func (b *Batch) processItem(ctx context.Context, raw string) model.BulkItem {
	item := model.BulkItem{Identifier: strings.TrimSpace(raw), Status: model.StatusPending}

	kind, id := identifier.Classify(raw)
	asin := id
	switch kind {
	case identifier.Invalid:
		return b.fail(item, model.FailureInvalid, ReasonInvalidFormat, nil)
	case identifier.UPC:
		resolved, err := b.resolve(ctx, id)
		if err != nil {
			return b.fail(item, model.FailureResolution, ReasonUPCConversion, err)
		}
		asin = resolved
	}
	item.ASIN = asin

	rec, err := b.fetch(ctx, asin)
	if err != nil {
		return b.fail(item, model.FailureFetch, err.Error(), err)
	}

	item.Status = model.StatusSuccess
	item.Analytics = rec
	b.log.Debug("item analysed", "identifier", item.Identifier, "asin", asin, "score", rec.Score)
	return item
}

func (b *Batch) fail(item model.BulkItem, kind model.FailureKind, reason string, err error) model.BulkItem {
	item.Status = model.StatusError
	item.Failure = kind
	item.Error = reason
	b.log.Debug("item failed", "identifier", item.Identifier, "failure", kind, "err", err)
	return item
}

func (b *Batch) resolve(ctx context.Context, upc string) (string, error) {
	if b.resolver == nil {
		return "", errNoResolver
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.ResolveTimeout)
	defer cancel()

	asin, err := b.resolver.ResolveIdentifier(ctx, upc)
	if err != nil {
		return "", err
	}
	asin = strings.ToUpper(strings.TrimSpace(asin))
	if asin == "" {
		return "", errEmptyResolution
	}
	return asin, nil
}

func (b *Batch) fetch(ctx context.Context, asin string) (*model.AnalyticsRecord, error) {
	if b.fetcher == nil {
		return nil, errNoFetcher
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.FetchTimeout)
	defer cancel()

	rec, err := b.fetcher.FetchAnalytics(ctx, asin, b.profile)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errEmptyAnalytics
	}
	return rec, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
