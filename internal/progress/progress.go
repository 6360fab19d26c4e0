// Package progress renders bulk run progress on a terminal line.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/guarzo/fbascout/internal/bulk"
)

const (
	barWidth      = 30
	redrawEvery   = 100 * time.Millisecond
	defaultPrefix = "Analyzing"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Indicator redraws a single status line as a bulk run publishes progress.
// A disabled indicator writes nothing.
type Indicator struct {
	out     io.Writer
	prefix  string
	enabled bool
	now     func() time.Time

	mu        sync.Mutex
	total     int
	started   time.Time
	lastDrawn time.Time
}

// ForBatch returns an indicator for a run over total identifiers. quiet
// disables it.
func ForBatch(out io.Writer, total int, quiet bool) *Indicator {
	return &Indicator{
		out:     out,
		prefix:  defaultPrefix,
		enabled: !quiet,
		now:     time.Now,
		total:   total,
	}
}

// Start prints the header line and resets the clock used for ETA.
func (in *Indicator) Start() {
	if !in.enabled {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.started = in.now()
	fmt.Fprintf(in.out, "%s %d identifiers...\n", in.prefix, in.total)
}

// Observe has the signature of a bulk progress callback. Terminal states
// end the line.
func (in *Indicator) Observe(p bulk.Progress) {
	if !in.enabled {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if p.Total > 0 {
		in.total = p.Total
	} else {
		p.Total = in.total
	}
	now := in.now()
	if in.started.IsZero() {
		in.started = now
	}
	elapsed := now.Sub(in.started)

	switch {
	case p.State == bulk.StateFailed:
		fmt.Fprintf(in.out, "\r%s ✗ failed after %s: %s\n", in.prefix, humanDuration(elapsed), p.Reason)
	case p.State.Terminal():
		verb := "done:"
		if p.Cancelled {
			verb = "cancelled after"
		}
		fmt.Fprintf(in.out, "\r%s ✓ %s %d items (%d ok, %d failed) in %s\n",
			in.prefix, verb, p.Completed, p.Succeeded, p.Failed, humanDuration(elapsed))
	default:
		if now.Sub(in.lastDrawn) < redrawEvery && !in.lastDrawn.IsZero() {
			return
		}
		in.lastDrawn = now
		fmt.Fprint(in.out, "\r"+in.line(p, elapsed))
	}
}

func (in *Indicator) line(p bulk.Progress, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(in.prefix)
	if p.Total <= 0 {
		frame := spinnerFrames[int(elapsed/redrawEvery)%len(spinnerFrames)]
		fmt.Fprintf(&b, " %c %d processed", frame, p.Completed)
	} else {
		frac := p.Fraction()
		fmt.Fprintf(&b, " [%s] %d/%d (%.1f%%)", bar(frac), p.Completed, p.Total, frac*100)
		if eta, ok := estimate(p.Completed, p.Total, elapsed); ok {
			fmt.Fprintf(&b, " eta %s", humanDuration(eta))
		}
	}
	if p.Current != "" {
		b.WriteString(" " + p.Current)
	}
	return b.String()
}

// bar draws frac (0..1) as a fixed-width bar with a partial cell at the edge.
func bar(frac float64) string {
	frac = min(max(frac, 0), 1)
	full := int(frac * barWidth)
	if full == barWidth {
		return strings.Repeat("█", barWidth)
	}
	return strings.Repeat("█", full) + "▓" + strings.Repeat("░", barWidth-full-1)
}

// estimate extrapolates the remaining time from the average pace so far.
func estimate(done, total int, elapsed time.Duration) (time.Duration, bool) {
	if done <= 0 || elapsed <= 0 || done >= total {
		return 0, false
	}
	perItem := elapsed / time.Duration(done)
	return perItem * time.Duration(total-done), true
}

func humanDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}
