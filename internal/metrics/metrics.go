package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/model"
)

const namespace = "fbascout"

// Metrics holds the collectors for batch processing and upstream calls.
type Metrics struct {
	registry *prometheus.Registry

	BatchItems      *prometheus.CounterVec
	Batches         *prometheus.CounterVec
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec
	ActiveBatches   prometheus.Gauge
}

// New creates a Metrics instance on its own registry, with Go runtime and
// process collectors included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		BatchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Processed batch items by status and failure kind",
		}, []string{"status", "failure"}),
		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Finished batches by terminal state",
		}, []string{"state"}),
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_seconds",
			Help:      "Latency of resolver and analytics calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Failed resolver and analytics calls",
		}, []string{"call"}),
		ActiveBatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_batches",
			Help:      "Batches currently running",
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReport records a finished batch and its items.
func (m *Metrics) ObserveReport(rep *bulk.Report) {
	if rep == nil {
		return
	}
	state := string(rep.State)
	if rep.Cancelled {
		state = "cancelled"
	}
	m.Batches.WithLabelValues(state).Inc()
	for _, item := range rep.Items {
		m.BatchItems.WithLabelValues(string(item.Status), string(item.Failure)).Inc()
	}
}

func (m *Metrics) observeCall(call string, start time.Time, err error) {
	m.UpstreamLatency.WithLabelValues(call).Observe(time.Since(start).Seconds())
	if err != nil {
		m.UpstreamErrors.WithLabelValues(call).Inc()
	}
}

type instrumentedResolver struct {
	next bulk.Resolver
	m    *Metrics
}

func (r instrumentedResolver) ResolveIdentifier(ctx context.Context, upc string) (string, error) {
	start := time.Now()
	asin, err := r.next.ResolveIdentifier(ctx, upc)
	r.m.observeCall("resolve", start, err)
	return asin, err
}

// InstrumentResolver wraps a resolver with latency and error metrics.
func (m *Metrics) InstrumentResolver(next bulk.Resolver) bulk.Resolver {
	return instrumentedResolver{next: next, m: m}
}

type instrumentedFetcher struct {
	next bulk.AnalyticsFetcher
	m    *Metrics
}

func (f instrumentedFetcher) FetchAnalytics(ctx context.Context, asin string, profile model.CostProfile) (*model.AnalyticsRecord, error) {
	start := time.Now()
	rec, err := f.next.FetchAnalytics(ctx, asin, profile)
	f.m.observeCall("analytics", start, err)
	return rec, err
}

// InstrumentFetcher wraps an analytics fetcher with latency and error metrics.
func (m *Metrics) InstrumentFetcher(next bulk.AnalyticsFetcher) bulk.AnalyticsFetcher {
	return instrumentedFetcher{next: next, m: m}
}
