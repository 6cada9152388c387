// Package observability holds the Prometheus metrics of the dashboard.
//
// Metrics:
//   - lendpanel_upstream_requests_total{kind, status, class}: calls to the lending API
//   - lendpanel_upstream_request_duration_seconds{kind}: call latency
//   - lendpanel_stale_results_total{dataset, kind}: fetch results discarded because the query changed
//   - lendpanel_csv_exports_total{dataset, outcome}: export attempts (ok, empty, error)
//   - lendpanel_cache_lookups_total{result}: download-set cache hits and misses
//   - lendpanel_http_requests_total{method, route, status}: served requests
//   - lendpanel_http_request_duration_seconds{method, route}: serving latency
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Export outcomes.
const (
	ExportOK    = "ok"
	ExportEmpty = "empty"
	ExportError = "error"
)

// Metrics owns a private registry so tests and multiple App instances do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	staleResults     *prometheus.CounterVec
	exports          *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		upstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpanel_upstream_requests_total",
			Help: "Lending API calls by endpoint kind, HTTP status and error class",
		}, []string{"kind", "status", "class"}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendpanel_upstream_request_duration_seconds",
			Help:    "Lending API call duration by endpoint kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		staleResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpanel_stale_results_total",
			Help: "Fetch results discarded because the table state changed while in flight",
		}, []string{"dataset", "kind"}),
		exports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpanel_csv_exports_total",
			Help: "CSV export attempts by dataset and outcome",
		}, []string{"dataset", "outcome"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpanel_cache_lookups_total",
			Help: "Download-set cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lendpanel_http_requests_total",
			Help: "HTTP requests served by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lendpanel_http_request_duration_seconds",
			Help:    "HTTP request duration by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveUpstream records one lending API call.
func (m *Metrics) ObserveUpstream(kind, status, class string, elapsed time.Duration) {
	m.upstreamRequests.WithLabelValues(kind, status, class).Inc()
	m.upstreamDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// StaleDiscarded records a discarded fetch result.
func (m *Metrics) StaleDiscarded(dataset, kind string) {
	m.staleResults.WithLabelValues(dataset, kind).Inc()
}

// ExportFinished records the outcome of a CSV export.
func (m *Metrics) ExportFinished(dataset, outcome string) {
	m.exports.WithLabelValues(dataset, outcome).Inc()
}

// CacheLookup records a download-set cache lookup ("hit", "miss" or "error").
func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
