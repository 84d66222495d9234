// Package metrics defines the Prometheus collectors exported by the approval
// ledger, the watchdog supervisor and the plan orchestrator. All recording
// helpers are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for fluxgate
type Metrics struct {
	// Approval ledger metrics
	ApprovalTransitions *prometheus.CounterVec
	ApprovalExecutions  *prometheus.CounterVec
	ApprovalDuration    *prometheus.HistogramVec
	ApprovalQueueRuns   *prometheus.CounterVec

	// Watchdog metrics
	WatcherChecks        *prometheus.CounterVec
	WatcherCheckDuration *prometheus.HistogramVec
	WatcherRestarts      *prometheus.CounterVec
	WatcherUp            *prometheus.GaugeVec

	// Plan metrics
	PlanStepTransitions *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		ApprovalTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxgate_approval_transitions_total",
				Help: "Total number of approval request status transitions",
			},
			[]string{"category", "status"},
		),
		ApprovalExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxgate_approval_executions_total",
				Help: "Total number of approved action executions",
			},
			[]string{"category", "result"},
		),
		ApprovalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fluxgate_approval_execution_duration_seconds",
				Help:    "Approved action execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		ApprovalQueueRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxgate_approval_queue_items_total",
				Help: "Requests handled by queue processing, by outcome",
			},
			[]string{"outcome"},
		),

		WatcherChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxgate_watcher_checks_total",
				Help: "Total number of watcher health checks",
			},
			[]string{"watcher", "result"},
		),
		WatcherCheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fluxgate_watcher_check_duration_seconds",
				Help:    "Watcher health check duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
			},
			[]string{"watcher"},
		),
		WatcherRestarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxgate_watcher_restarts_total",
				Help: "Total number of watcher restarts",
			},
			[]string{"watcher", "outcome"},
		),
		WatcherUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fluxgate_watcher_up",
				Help: "Whether the watcher is running (1) or not (0)",
			},
			[]string{"watcher"},
		),

		PlanStepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxgate_plan_step_transitions_total",
				Help: "Total number of plan step status transitions",
			},
			[]string{"status"},
		),
	}
}

// NewRegistry creates a new Prometheus registry with metrics
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// HandlerFor returns an HTTP handler exposing reg.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RecordTransition counts an approval status change.
func (m *Metrics) RecordTransition(category, status string) {
	if m == nil {
		return
	}
	m.ApprovalTransitions.WithLabelValues(category, status).Inc()
}

// RecordExecution counts an executor call; result is success, transient or permanent.
func (m *Metrics) RecordExecution(category, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.ApprovalExecutions.WithLabelValues(category, result).Inc()
	m.ApprovalDuration.WithLabelValues(category).Observe(took.Seconds())
}

// RecordQueue adds queue processing outcomes.
func (m *Metrics) RecordQueue(executed, failed, expired int) {
	if m == nil {
		return
	}
	m.ApprovalQueueRuns.WithLabelValues("executed").Add(float64(executed))
	m.ApprovalQueueRuns.WithLabelValues("failed").Add(float64(failed))
	m.ApprovalQueueRuns.WithLabelValues("expired").Add(float64(expired))
}

// RecordCheck counts a health check; result is healthy, unhealthy or error.
func (m *Metrics) RecordCheck(watcher, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.WatcherChecks.WithLabelValues(watcher, result).Inc()
	m.WatcherCheckDuration.WithLabelValues(watcher).Observe(took.Seconds())
}

// RecordRestart counts a restart attempt; outcome is started, failed or suppressed.
func (m *Metrics) RecordRestart(watcher, outcome string) {
	if m == nil {
		return
	}
	m.WatcherRestarts.WithLabelValues(watcher, outcome).Inc()
}

// SetRunning updates the watcher up gauge.
func (m *Metrics) SetRunning(watcher string, running bool) {
	if m == nil {
		return
	}
	value := 0.0
	if running {
		value = 1
	}
	m.WatcherUp.WithLabelValues(watcher).Set(value)
}

// RecordStep counts a plan step transition.
func (m *Metrics) RecordStep(status string) {
	if m == nil {
		return
	}
	m.PlanStepTransitions.WithLabelValues(status).Inc()
}
