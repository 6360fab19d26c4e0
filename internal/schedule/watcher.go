package schedule

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/identifier"
	"github.com/guarzo/fbascout/internal/model"
	"github.com/guarzo/fbascout/internal/monitoring"
)

// ErrRunInProgress is returned when a watch run is triggered while the
// previous one is still going.
var ErrRunInProgress = errors.New("schedule: watch run already in progress")

// ReportStore persists finished runs.
type ReportStore interface {
	SaveReport(ctx context.Context, rep *bulk.Report) error
	GetReport(ctx context.Context, id string) (*bulk.Report, error)
	ListReports(ctx context.Context, limit int) ([]*bulk.Report, error)
}

// Observer is notified after every completed watch run.
type Observer func(rep *bulk.Report, alerts []monitoring.Alert)

// Watcher re-runs a watchlist on a cron schedule, stores each report and
// raises alerts against the previous run.
type Watcher struct {
	processor *bulk.Processor
	store     ReportStore
	load      func() ([]string, error)
	profile   model.CostProfile
	alerts    *monitoring.AlertEngine
	observer  Observer

	running atomic.Bool
	mu      sync.Mutex
	last    *monitoring.Snapshot
	cron    *cron.Cron
}

// NewWatcher creates a watcher. load supplies the identifiers for each run;
// store may be nil.
func NewWatcher(processor *bulk.Processor, store ReportStore, load func() ([]string, error), profile model.CostProfile, alertCfg monitoring.AlertConfig) *Watcher {
	return &Watcher{
		processor: processor,
		store:     store,
		load:      load,
		profile:   profile,
		alerts:    monitoring.NewAlertEngine(alertCfg),
	}
}

// OnRun registers the observer called after each run.
func (w *Watcher) OnRun(fn Observer) { w.observer = fn }

// Start schedules runs on spec (standard five-field cron or descriptors
// like "@every 6h"). Runs that would overlap a running one are skipped.
func (w *Watcher) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, _, err := w.RunOnce(ctx); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				slog.Warn("watch run skipped", "reason", "previous run still active")
				return
			}
			slog.Error("watch run failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule: invalid cron spec %q: %w", spec, err)
	}

	w.mu.Lock()
	w.cron = c
	w.mu.Unlock()

	c.Start()
	slog.Info("watcher started", "schedule", spec)
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	c := w.cron
	w.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

// RunOnce runs the watchlist now. It returns the report and the alerts
// raised against the previous run, if any.
func (w *Watcher) RunOnce(ctx context.Context) (*bulk.Report, []monitoring.Alert, error) {
	if !w.running.CompareAndSwap(false, true) {
		return nil, nil, ErrRunInProgress
	}
	defer w.running.Store(false)

	ids, err := w.load()
	if err != nil {
		return nil, nil, fmt.Errorf("schedule: load watchlist: %w", err)
	}

	previous := w.previousSnapshot(ctx)

	rep, err := w.processor.RunBatch(ctx, ids, w.profile, nil)
	if err != nil {
		return rep, nil, err
	}

	if w.store != nil {
		if err := w.store.SaveReport(ctx, rep); err != nil {
			return rep, nil, fmt.Errorf("schedule: save report: %w", err)
		}
	}

	current := monitoring.SnapshotFromReport(rep)
	var alerts []monitoring.Alert
	if previous != nil {
		alerts = w.alerts.Compare(previous, current)
	}

	w.mu.Lock()
	w.last = current
	w.mu.Unlock()

	slog.Info("watch run finished", "id", rep.ID, "summary", rep.Summary(), "alerts", len(alerts))
	if w.observer != nil {
		w.observer(rep, alerts)
	}
	return rep, alerts, nil
}

// previousSnapshot is the last run of this process, or else the newest
// stored completed run.
func (w *Watcher) previousSnapshot(ctx context.Context) *monitoring.Snapshot {
	w.mu.Lock()
	last := w.last
	w.mu.Unlock()
	if last != nil || w.store == nil {
		return last
	}

	reps, err := w.store.ListReports(ctx, 5)
	if err != nil {
		slog.Warn("could not load previous run", "err", err)
		return nil
	}
	for _, r := range reps {
		if r.State != bulk.StateCompleted {
			continue
		}
		full, err := w.store.GetReport(ctx, r.ID)
		if err != nil {
			slog.Warn("could not load previous run", "id", r.ID, "err", err)
			return nil
		}
		return monitoring.SnapshotFromReport(full)
	}
	return nil
}

// FileSource reads identifiers from path on every call. Lines starting with
// '#' are comments; entries may be separated as in pasted input.
func FileSource(path string) func() ([]string, error) {
	return func() ([]string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var b strings.Builder
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if strings.HasPrefix(line, "#") {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return identifier.Parse(b.String()), nil
	}
}
