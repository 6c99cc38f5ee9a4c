// Package monitoring exposes Prometheus metrics for the plan execution
// engine. Metrics hang off an injected registry so tests can run isolated
// instances side by side.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metrics.
type Metrics struct {
	Registry *prometheus.Registry

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec // labeled by outcome
	ExecutionDuration prometheus.Histogram
	ExecutionsActive  prometheus.Gauge

	// Policy metrics
	PolicyChecks  *prometheus.CounterVec // labeled by verdict
	PolicyIssues  prometheus.Counter
	PolicyProfile *prometheus.GaugeVec // active profile indicator

	// Resolver metrics
	ResolutionsTotal prometheus.Counter
	IntegrityFetches *prometheus.CounterVec // labeled by result
	ManifestPins     prometheus.Counter

	// Preflight metrics
	PreflightProbes   *prometheus.CounterVec // labeled by result
	PreflightDuration prometheus.Histogram

	// Sandbox metrics
	SandboxPoolIdle prometheus.Gauge
	SandboxTimeouts prometheus.Counter

	// Event dispatch metrics
	EventsDispatched prometheus.Counter
	ActionsApplied   prometheus.Counter

	startTime time.Time
	Uptime    prometheus.Gauge
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics on an injected registry.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		Registry:  reg,
		startTime: time.Now(),

		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renderify_executions_total",
			Help: "Plan executions by outcome",
		}, []string{"outcome"}),
		ExecutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "renderify_execution_duration_seconds",
			Help:    "Plan execution duration",
			Buckets: prometheus.DefBuckets,
		}),
		ExecutionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "renderify_executions_active",
			Help: "Currently executing plans",
		}),

		PolicyChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renderify_policy_checks_total",
			Help: "Policy checks by verdict",
		}, []string{"verdict"}),
		PolicyIssues: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderify_policy_issues_total",
			Help: "Policy issues found",
		}),
		PolicyProfile: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "renderify_policy_profile",
			Help: "Active policy profile (1 for the active one)",
		}, []string{"profile"}),

		ResolutionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderify_module_resolutions_total",
			Help: "Module specifier resolutions",
		}),
		IntegrityFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renderify_integrity_fetches_total",
			Help: "Integrity digest fetches by result",
		}, []string{"result"}),
		ManifestPins: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderify_manifest_pins_total",
			Help: "Manifest entries auto-pinned",
		}),

		PreflightProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "renderify_preflight_probes_total",
			Help: "Dependency preflight probes by result",
		}, []string{"result"}),
		PreflightDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "renderify_preflight_duration_seconds",
			Help:    "Dependency preflight duration per plan",
			Buckets: prometheus.DefBuckets,
		}),

		SandboxPoolIdle: factory.NewGauge(prometheus.GaugeOpts{
			Name: "renderify_sandbox_pool_idle",
			Help: "Idle sandbox runtimes in the pool",
		}),
		SandboxTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderify_sandbox_timeouts_total",
			Help: "Executions interrupted by deadline",
		}),

		EventsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderify_events_dispatched_total",
			Help: "Events dispatched against plan transitions",
		}),
		ActionsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "renderify_actions_applied_total",
			Help: "Declarative actions applied",
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "renderify_uptime_seconds",
			Help: "Engine uptime",
		}),
	}

	return m
}

// RecordExecution tracks one finished execution.
func (m *Metrics) RecordExecution(outcome string, duration time.Duration) {
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
