package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/guarzo/fbascout/internal/model"
)

// Report is the outcome of one batch run.
type Report struct {
	ID         string            `json:"id"`
	State      State             `json:"state"`
	Items      []model.BulkItem  `json:"items"`
	Succeeded  int               `json:"succeeded"`
	Total      int               `json:"total"`
	Cancelled  bool              `json:"cancelled"`
	Reason     string            `json:"reason,omitempty"`
	Profile    model.CostProfile `json:"profile"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// Summary renders the succeeded/total line shown for finished batches.
func (r *Report) Summary() string {
	if r.State == StateFailed {
		return fmt.Sprintf("failed: %s", r.Reason)
	}
	s := fmt.Sprintf("%d/%d succeeded", r.Succeeded, r.Total)
	if r.Cancelled {
		s += fmt.Sprintf(" (cancelled after %d)", len(r.Items))
	}
	return s
}

// Processor runs batches against a fixed set of collaborators.
type Processor struct {
	cfg      Config
	resolver Resolver
	fetcher  AnalyticsFetcher
	now      func() time.Time
}

// NewProcessor creates a processor. Zero config fields take their defaults.
func NewProcessor(cfg Config, resolver Resolver, fetcher AnalyticsFetcher) *Processor {
	return &Processor{
		cfg:      cfg.normalized(),
		resolver: resolver,
		fetcher:  fetcher,
		now:      time.Now,
	}
}

// Config returns the effective configuration.
func (p *Processor) Config() Config { return p.cfg }

// NewBatch prepares a batch without running it, so callers can hand its
// Snapshot to observers before Execute.
func (p *Processor) NewBatch(ids []string, profile model.CostProfile) *Batch {
	return NewBatch(ids, profile, p.cfg, p.resolver, p.fetcher)
}

// RunBatch creates and runs a batch, returning its report. On pre-flight
// failure the report is still returned, in the Failed state, alongside the
// validation error.
func (p *Processor) RunBatch(ctx context.Context, ids []string, profile model.CostProfile, onProgress func(Progress)) (*Report, error) {
	return p.Execute(ctx, p.NewBatch(ids, profile), onProgress)
}

// Execute runs a batch created by NewBatch.
func (p *Processor) Execute(ctx context.Context, b *Batch, onProgress func(Progress)) (*Report, error) {
	started := p.now()
	items, err := b.Run(ctx, onProgress)
	snap := b.Snapshot()

	report := &Report{
		ID:         b.ID(),
		State:      snap.State,
		Items:      items,
		Succeeded:  snap.Succeeded,
		Total:      snap.Total,
		Cancelled:  snap.Cancelled,
		Reason:     snap.Reason,
		Profile:    b.profile,
		StartedAt:  started,
		FinishedAt: p.now(),
	}
	if report.Items == nil {
		report.Items = []model.BulkItem{}
	}
	return report, err
}

// Check runs the pre-flight validation a batch of ids would get, without
// creating the batch.
func (p *Processor) Check(ids []string) error {
	return validate(ids, p.cfg.MaxBatchSize)
}
