// Package monitoring exposes prometheus metrics for the request path and
// the trace export pipeline.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus metrics.
//
// Each Metrics owns its registry so tests can construct instances freely
// without tripping duplicate-registration panics on the global registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Trace pipeline metrics
	SpansExportedTotal  prometheus.Counter
	SpansDroppedTotal   prometheus.Counter
	ExportFailuresTotal prometheus.Counter

	// Downstream call metrics
	ClientCalls  *prometheus.CounterVec
	ClientErrors *prometheus.CounterVec
}

// NewMetrics creates a metrics collector with its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SpansExportedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_trace_spans_exported_total",
				Help: "Total number of spans delivered to the collector",
			},
		),
		SpansDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_trace_spans_dropped_total",
				Help: "Total number of spans dropped on queue overflow",
			},
		),
		ExportFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_trace_export_failures_total",
				Help: "Total number of span batches discarded after retry exhaustion",
			},
		),

		ClientCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_client_calls_total",
				Help: "Total number of outbound HTTP calls",
			},
			[]string{"target", "status"},
		),
		ClientErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_client_errors_total",
				Help: "Total number of failed outbound HTTP calls",
			},
			[]string{"target"},
		),
	}
}

// Handler returns the prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordClientCall records one outbound call.
func (m *Metrics) RecordClientCall(target, status string, failed bool) {
	m.ClientCalls.WithLabelValues(target, status).Inc()
	if failed {
		m.ClientErrors.WithLabelValues(target).Inc()
	}
}

// SpansExported implements the export stats sink.
func (m *Metrics) SpansExported(n int) {
	m.SpansExportedTotal.Add(float64(n))
}

// SpansDropped implements the export stats sink.
func (m *Metrics) SpansDropped(n int) {
	m.SpansDroppedTotal.Add(float64(n))
}

// ExportFailures implements the export stats sink.
func (m *Metrics) ExportFailures(n int) {
	m.ExportFailuresTotal.Add(float64(n))
}
