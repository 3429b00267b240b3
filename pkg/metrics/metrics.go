// Package metrics exposes Prometheus metrics for profile picture lookups.
//
// All recording methods are safe to call on a nil *Metrics so components can
// run without a registry (tests, the resolve command).
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "igavatar"

// Metrics contains the Prometheus collectors for the service
type Metrics struct {
	registry *prometheus.Registry

	// Upstream strategy metrics
	strategyAttemptsTotal *prometheus.CounterVec
	strategyDuration      *prometheus.HistogramVec

	// Resolution metrics
	cacheLookupsTotal  *prometheus.CounterVec
	resolutionsTotal   *prometheus.CounterVec
	batchSize          prometheus.Histogram
	imageRelayedTotal  *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpRequestSeconds *prometheus.HistogramVec
}

// New creates the service metrics and registers them on registry.
// A nil registry gets a fresh one.
func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}
	m.initMetrics()

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *Metrics) initMetrics() {
	m.strategyAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_attempts_total",
			Help:      "Upstream strategy attempts by outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: success, soft_fail, not_found
	)

	m.strategyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Time taken by a single upstream strategy attempt",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	m.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Resolution cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	m.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Username resolutions by result kind",
		},
		[]string{"result"}, // success, not_found, upstream, validation
	)

	m.batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of distinct usernames per batch request",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000},
		},
	)

	m.imageRelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_relayed_total",
			Help:      "Image relay responses by serving tier",
		},
		[]string{"tier"}, // direct, proxy, redirect
	)

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	m.httpRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// getCollectors returns all collectors in order for Describe/Collect operations
func (m *Metrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.strategyAttemptsTotal,
		m.strategyDuration,
		m.cacheLookupsTotal,
		m.resolutionsTotal,
		m.batchSize,
		m.imageRelayedTotal,
		m.httpRequestsTotal,
		m.httpRequestSeconds,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStrategyAttempt records one upstream strategy attempt
func (m *Metrics) RecordStrategyAttempt(strategy, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.strategyAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	m.strategyDuration.WithLabelValues(strategy).Observe(seconds)
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordResolution records the result kind of a username resolution
func (m *Metrics) RecordResolution(result string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(result).Inc()
}

// RecordBatch records the number of distinct usernames in a batch
func (m *Metrics) RecordBatch(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}

// RecordImageRelay records which tier served an image
func (m *Metrics) RecordImageRelay(tier string) {
	if m == nil {
		return
	}
	m.imageRelayedTotal.WithLabelValues(tier).Inc()
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpRequestSeconds.WithLabelValues(method, route).Observe(seconds)
}
