// Package metrics exposes Prometheus counters for id allocation,
// notification reconciliation, the due-notification executor and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskapi"

// Collector owns a private registry and every application metric.
type Collector struct {
	registry *prometheus.Registry

	clockRegressions prometheus.Counter
	sequenceStalls   prometheus.Counter

	reconciles          *prometheus.CounterVec
	portErrors          *prometheus.CounterVec
	handlePersistErrors prometheus.Counter
	invariantViolations *prometheus.CounterVec

	jobs            *prometheus.CounterVec
	deliveryLatency prometheus.Histogram
	jobsInFlight    prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them, together with the Go
// runtime and process collectors, on a new registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		clockRegressions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idgen_clock_regressions_total",
			Help:      "Allocations that observed the wall clock behind the last issued timestamp",
		}),
		sequenceStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idgen_sequence_stalls_total",
			Help:      "Allocations that waited for the next millisecond after exhausting the sequence",
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Reconciliation outcomes by action",
		}, []string{"action"}),
		portErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_port_errors_total",
			Help:      "Failed job port calls by operation",
		}, []string{"op"}),
		handlePersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_handle_persist_errors_total",
			Help:      "Failures writing the notification handle back to the task",
		}),
		invariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_invariant_violations_total",
			Help:      "Tasks found holding a notification handle they must not hold",
		}, []string{"kind"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_jobs_total",
			Help:      "Notification job transitions by outcome",
		}, []string{"outcome"}),
		deliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_delivery_seconds",
			Help:      "Time spent delivering a due notification",
			Buckets:   prometheus.DefBuckets,
		}),
		jobsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notify_jobs_in_flight",
			Help:      "Notification jobs currently being executed",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.clockRegressions,
		c.sequenceStalls,
		c.reconciles,
		c.portErrors,
		c.handlePersistErrors,
		c.invariantViolations,
		c.jobs,
		c.deliveryLatency,
		c.jobsInFlight,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordClockRegression matches idgen.WithRegressionHook.
func (c *Collector) RecordClockRegression(_, _ int64) {
	c.clockRegressions.Inc()
}

// RecordSequenceStall matches idgen.WithStallHook.
func (c *Collector) RecordSequenceStall() {
	c.sequenceStalls.Inc()
}

// RecordReconcile counts one reconciliation by its action.
func (c *Collector) RecordReconcile(action string) {
	c.reconciles.WithLabelValues(action).Inc()
}

// RecordPortError counts a failed Submit or Cancel.
func (c *Collector) RecordPortError(op string) {
	c.portErrors.WithLabelValues(op).Inc()
}

// RecordHandlePersistError counts a failed handle write-back.
func (c *Collector) RecordHandlePersistError() {
	c.handlePersistErrors.Inc()
}

// RecordInvariantViolation counts a task holding a forbidden handle.
func (c *Collector) RecordInvariantViolation(kind string) {
	c.invariantViolations.WithLabelValues(kind).Inc()
}

// RecordJob counts a notification job transition.
func (c *Collector) RecordJob(outcome string) {
	c.jobs.WithLabelValues(outcome).Inc()
}

// ObserveDelivery records the duration of one delivery attempt.
func (c *Collector) ObserveDelivery(d time.Duration) {
	c.deliveryLatency.Observe(d.Seconds())
}

// JobStarted and JobFinished track executing jobs.
func (c *Collector) JobStarted() {
	c.jobsInFlight.Inc()
}

func (c *Collector) JobFinished() {
	c.jobsInFlight.Dec()
}

// RecordHTTPRequest counts a finished request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
