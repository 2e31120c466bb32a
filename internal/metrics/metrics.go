// Package metrics is the Prometheus surface spec.md §7's "user-visible
// surface" names: counters for signals stored/deduplicated, sources
// scheduled/skipped, and extractions failed, served at /metrics by
// internal/httpserver.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter the pipeline emits into. Like kubernaut's
// own gateway metrics, it's constructed against an explicit registry so
// tests get isolation instead of colliding on the global default one.
type Metrics struct {
	SignalsStored       prometheus.Counter
	SignalsDeduplicated *prometheus.CounterVec
	SourcesScheduled    prometheus.Counter
	SourcesSkipped      *prometheus.CounterVec
	ExtractionsFailed   prometheus.Counter
	DedupLatency        prometheus.Histogram
}

// NewMetrics registers against the global default registry, for production.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers every metric against reg, so a test can
// pass prometheus.NewRegistry() and assert on a clean slate.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootsignal_signals_stored_total",
			Help: "Total signals accepted as new nodes in the graph.",
		}),
		SignalsDeduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rootsignal_signals_deduplicated_total",
			Help: "Total candidate signals resolved as a duplicate, by verdict (refresh/corroborate).",
		}, []string{"verdict"}),
		SourcesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootsignal_sources_scheduled_total",
			Help: "Total sources picked by the scheduler for a scrape run.",
		}),
		SourcesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rootsignal_sources_skipped_total",
			Help: "Total sources skipped before scraping, by reason.",
		}, []string{"reason"}),
		ExtractionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rootsignal_extractions_failed_total",
			Help: "Total extraction calls that returned an error.",
		}),
		DedupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rootsignal_dedup_seconds",
			Help:    "Time spent running dedup layers 2-4 against one batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.SignalsStored,
		m.SignalsDeduplicated,
		m.SourcesScheduled,
		m.SourcesSkipped,
		m.ExtractionsFailed,
		m.DedupLatency,
	)

	return m
}
