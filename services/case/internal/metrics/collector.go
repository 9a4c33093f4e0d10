// Package metrics exposes Prometheus collectors for the case service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sos"

// Collector holds the service's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	casesCreated        *prometheus.CounterVec
	workflowOperations  *prometheus.CounterVec
	classifierRequests  *prometheus.CounterVec
	classifierDuration  prometheus.Histogram
	monitorCooldown     prometheus.Gauge
	alertLogSize        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates and registers all collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		casesCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cases_created_total",
				Help:      "Total number of incident cases created",
			},
			[]string{"origin"},
		),

		workflowOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_operations_total",
				Help:      "Workflow operations by outcome",
			},
			[]string{"operation", "result"},
		),

		classifierRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_requests_total",
				Help:      "Vision classifier calls by outcome",
			},
			[]string{"outcome"},
		),

		classifierDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classifier_request_duration_seconds",
				Help:      "Latency of vision classifier calls",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
			},
		),

		monitorCooldown: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "monitor_cooldown_active",
				Help:      "1 while frame capture is suppressed after a rate limit",
			},
		),

		alertLogSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "monitor_alert_log_entries",
				Help:      "Entries currently held in the assessment log",
			},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CaseCreated counts a new case by origin.
func (c *Collector) CaseCreated(origin string) {
	c.casesCreated.WithLabelValues(origin).Inc()
}

// WorkflowOperation counts an applied or rejected workflow operation.
func (c *Collector) WorkflowOperation(operation, result string) {
	c.workflowOperations.WithLabelValues(operation, result).Inc()
}

// ClassifierRequest records one classifier call.
func (c *Collector) ClassifierRequest(outcome string, d time.Duration) {
	c.classifierRequests.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.classifierDuration.Observe(d.Seconds())
	}
}

// SetCooldown reports whether capture is suppressed.
func (c *Collector) SetCooldown(active bool) {
	if active {
		c.monitorCooldown.Set(1)
		return
	}
	c.monitorCooldown.Set(0)
}

// SetAlertLogSize reports the current alert log length.
func (c *Collector) SetAlertLogSize(n int) {
	c.alertLogSize.Set(float64(n))
}

// HTTPRequest records one served request.
func (c *Collector) HTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
