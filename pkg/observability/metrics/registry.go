// Package metrics provides Prometheus metrics for the admitdesk service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the Prometheus registry and the service's instruments.
// HTTP request metrics and Go runtime collectors are registered by default.
type Registry struct {
	registry *prometheus.Registry

	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestsInFlight prometheus.Gauge
	storeOperationsTotal *prometheus.CounterVec
}

// NewRegistry creates a registry with the default collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		storeOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_operations_total",
				Help: "Total number of document store operations",
			},
			[]string{"collection", "operation", "outcome"},
		),
	}

	r.registry.MustRegister(
		r.httpRequestDuration,
		r.httpRequestsTotal,
		r.httpRequestsInFlight,
		r.storeOperationsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordHTTPRequest updates the duration histogram and request counter.
func (r *Registry) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	s := strconv.Itoa(status)
	r.httpRequestDuration.WithLabelValues(method, path, s).Observe(duration.Seconds())
	r.httpRequestsTotal.WithLabelValues(method, path, s).Inc()
}

// IncInFlight increments the in-flight requests gauge.
func (r *Registry) IncInFlight() { r.httpRequestsInFlight.Inc() }

// DecInFlight decrements the in-flight requests gauge.
func (r *Registry) DecInFlight() { r.httpRequestsInFlight.Dec() }

// RecordStoreOperation counts one document store operation.
// outcome is "ok" or "error".
func (r *Registry) RecordStoreOperation(collection, operation, outcome string) {
	r.storeOperationsTotal.WithLabelValues(collection, operation, outcome).Inc()
}

// Register registers an additional collector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// Handler exposes the registry in Prometheus text format. Mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
