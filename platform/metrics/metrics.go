// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the lead modules.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	LeadOperations   *prometheus.CounterVec
	StageTransitions *prometheus.CounterVec
	ExportsRequested *prometheus.CounterVec

	// Notification metrics
	ActiveSubscribers    prometheus.Gauge
	NotificationsDropped prometheus.Counter
}

// New creates a Metrics instance registered on its own registry together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		LeadOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_operations_total",
				Help: "Lead service operations by outcome",
			},
			[]string{"operation", "outcome"}, // outcome: ok, not_found, conflict, invalid, error
		),
		StageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_stage_transitions_total",
				Help: "Stage changes applied to leads",
			},
			[]string{"direction"}, // forward, backward, sideways
		),
		ExportsRequested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_exports_requested_total",
				Help: "Lead export jobs enqueued",
			},
			[]string{"format"},
		),

		ActiveSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lead_notification_subscribers",
			Help: "Currently connected change-notification subscribers",
		}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lead_notifications_dropped_total",
			Help: "Change notifications dropped for slow or failed subscribers",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath() // route pattern, not the raw URL
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordLeadOperation counts one lead service call.
func (m *Metrics) RecordLeadOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.LeadOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordStageTransition counts one applied stage change.
func (m *Metrics) RecordStageTransition(direction string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(direction).Inc()
}

// RecordExport counts one enqueued export job.
func (m *Metrics) RecordExport(format string) {
	if m == nil {
		return
	}
	m.ExportsRequested.WithLabelValues(format).Inc()
}
