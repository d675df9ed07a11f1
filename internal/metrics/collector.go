// Package metrics provides the fabric's Prometheus metrics. This package
// is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Metrics is the fabric's Prometheus-backed counters, histograms and
// gauges. It satisfies router.Recorder by structural typing, keeping
// router free of a direct dependency on this package.
type Metrics struct {
	routesTotal            *prometheus.CounterVec
	routeSelectionDuration prometheus.Histogram
	capabilityUsageTotal   *prometheus.CounterVec
	agentUtilizationTotal  *prometheus.CounterVec

	workflowStepsTotal   *prometheus.CounterVec
	workflowDuration     prometheus.Histogram
	recoveryAttemptsTotal *prometheus.CounterVec

	agentsRegistered prometheus.Gauge

	logger *zap.Logger
}

// NewMetrics registers and returns the fabric's metric set under the
// given namespace.
func NewMetrics(namespace string, logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger: logger.With(zap.String("component", "metrics")),
	}

	m.routesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_total",
			Help:      "Total number of capability routing decisions",
		},
		[]string{"outcome"},
	)

	m.routeSelectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_selection_duration_seconds",
			Help:      "Time spent selecting an agent for a capability request",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.capabilityUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_usage_total",
			Help:      "Total number of times a capability kind was routed",
		},
		[]string{"kind"},
	)

	m.agentUtilizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_utilization_total",
			Help:      "Total number of times an agent was selected to handle work",
		},
		[]string{"agent_id"},
	)

	m.workflowStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Total number of workflow steps dispatched, by outcome",
		},
		[]string{"status"},
	)

	m.workflowDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "End-to-end workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	m.recoveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_attempts_total",
			Help:      "Total number of recovery attempts, by error kind and outcome",
		},
		[]string{"error_kind", "outcome"},
	)

	m.agentsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_registered",
			Help:      "Current number of agents registered with the fabric",
		},
	)

	m.logger.Info("metrics initialized", zap.String("namespace", namespace))

	return m
}

// RecordRoute implements router.Recorder.
func (m *Metrics) RecordRoute(outcome string, selectionDuration time.Duration) {
	m.routesTotal.WithLabelValues(outcome).Inc()
	m.routeSelectionDuration.Observe(selectionDuration.Seconds())
}

// RecordCapabilityUsage implements router.Recorder.
func (m *Metrics) RecordCapabilityUsage(kind string) {
	m.capabilityUsageTotal.WithLabelValues(kind).Inc()
}

// RecordAgentUtilization implements router.Recorder.
func (m *Metrics) RecordAgentUtilization(agentID string) {
	m.agentUtilizationTotal.WithLabelValues(agentID).Inc()
}

// RecordWorkflowStep records a single step's terminal status.
func (m *Metrics) RecordWorkflowStep(status string) {
	m.workflowStepsTotal.WithLabelValues(status).Inc()
}

// RecordWorkflowDuration records a completed workflow's wall-clock time.
func (m *Metrics) RecordWorkflowDuration(d time.Duration) {
	m.workflowDuration.Observe(d.Seconds())
}

// RecordRecoveryAttempt records one recovery decision outcome for a
// given error kind (retry, reassign, abort, escalate, ...).
func (m *Metrics) RecordRecoveryAttempt(errorKind, outcome string) {
	m.recoveryAttemptsTotal.WithLabelValues(errorKind, outcome).Inc()
}

// SetAgentsRegistered sets the current gauge of registered agents.
func (m *Metrics) SetAgentsRegistered(n int) {
	m.agentsRegistered.Set(float64(n))
}
