// Package httpserver is the minimal ops surface spec.md §7 requires to
// exist: /healthz, /stats (aggregate counters), and /metrics (Prometheus
// scrape target). Explicitly not the excluded GraphQL/REST admin layer —
// three read-only routes, no mutation.
package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/fourthplaces/rootsignal/internal/metrics"
)

// Stats is the JSON shape /stats returns: spec.md §7's "aggregate counters
// ... (total signals, sources scheduled/skipped, extractions failed,
// etc.)".
type Stats struct {
	SignalsStored     float64            `json:"signals_stored"`
	SignalsDedup      map[string]float64 `json:"signals_deduplicated"`
	SourcesScheduled  float64            `json:"sources_scheduled"`
	SourcesSkipped    map[string]float64 `json:"sources_skipped"`
	ExtractionsFailed float64            `json:"extractions_failed"`
	UptimeSeconds     float64            `json:"uptime_seconds"`
}

// Server wires the three ops routes against one Metrics instance and the
// registry/gatherer it was registered on.
type Server struct {
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	startedAt time.Time
}

// New builds a Server. gatherer is usually the same *prometheus.Registry (or
// prometheus.DefaultGatherer) m was constructed against, so /metrics serves
// exactly the counters /stats also summarizes.
func New(m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{metrics: m, gatherer: gatherer, startedAt: time.Now()}
}

// Router builds the chi mux, CORS-wrapped per allowedOrigins (config.
// ServerConfig.AllowedOrigins; "*" by default).
func (s *Server) Router(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Stats{
		SignalsStored:     counterValue(s.metrics.SignalsStored),
		SignalsDedup:      vecValues(s.metrics.SignalsDeduplicated, "verdict", []string{"refresh", "corroborate"}),
		SourcesScheduled:  counterValue(s.metrics.SourcesScheduled),
		SourcesSkipped:    vecValues(s.metrics.SourcesSkipped, "reason", []string{"cadence", "robots_disallowed", "rate_limited", "dormant"}),
		ExtractionsFailed: counterValue(s.metrics.ExtractionsFailed),
		UptimeSeconds:     time.Since(s.startedAt).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// vecValues reads a fixed, known set of label values off a CounterVec for
// the /stats snapshot. It intentionally doesn't enumerate every label value
// that has ever been observed (that needs a registry walk), so a label value
// missing from knownValues is not reported on /stats.
func vecValues(vec *prometheus.CounterVec, _ string, knownValues []string) map[string]float64 {
	out := make(map[string]float64, len(knownValues))
	for _, v := range knownValues {
		c, err := vec.GetMetricWithLabelValues(v)
		if err != nil {
			continue
		}
		out[v] = counterValue(c)
	}
	return out
}
