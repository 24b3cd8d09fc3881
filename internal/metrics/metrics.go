// Package metrics defines the prometheus collectors for the estimator and
// the chi middleware that records HTTP traffic.
//
// All recording methods are safe on a nil *Metrics, so components can take
// one optionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "solar_estimator"

	modeLabel   = "mode"
	resultLabel = "result"
	kindLabel   = "kind"

	// CacheHit and friends label yield cache lookups.
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	estimates      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	upstreamTime   prometheus.Histogram

	http *Middleware
}

// New builds the collectors on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimates_total",
			Help:      "number of completed estimates partitioned by savings mode",
		}, []string{modeLabel}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "yield_cache_lookups_total",
			Help:      "yield cache lookups partitioned by result",
		}, []string{resultLabel}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "yield_upstream_errors_total",
			Help:      "failed yield provider calls partitioned by kind",
		}, []string{kindLabel}),
		upstreamTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "yield_upstream_duration_seconds",
			Help:      "time spent waiting on the yield provider",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		http: NewMiddleware(namespace),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.estimates,
		m.cacheLookups,
		m.upstreamErrors,
		m.upstreamTime,
	)
	m.registry.MustRegister(m.http.Collectors()...)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// HTTPMiddleware returns the request counting middleware, or a passthrough
// on a nil receiver.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return m.http.Handler(next)
}

// EstimateCompleted counts one estimate for mode.
func (m *Metrics) EstimateCompleted(mode string) {
	if m == nil {
		return
	}
	m.estimates.With(prometheus.Labels{modeLabel: mode}).Inc()
}

// CacheLookup counts one cache lookup; result is CacheHit, CacheMiss or CacheError.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.With(prometheus.Labels{resultLabel: result}).Inc()
}

// UpstreamError counts one failed provider call.
func (m *Metrics) UpstreamError(kind string) {
	if m == nil {
		return
	}
	m.upstreamErrors.With(prometheus.Labels{kindLabel: kind}).Inc()
}

// ObserveUpstream records the duration of one provider call in seconds.
func (m *Metrics) ObserveUpstream(seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTime.Observe(seconds)
}
