package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

const metricsNamespace = "mendbot"

// Metrics collects session metrics in a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// AttemptsTotal counts finished iterations by outcome.
	AttemptsTotal *prometheus.CounterVec

	// AttemptDurationSeconds observes whole-iteration wall time.
	AttemptDurationSeconds prometheus.Histogram

	// AgentDurationSeconds observes agent runs by how they ended.
	AgentDurationSeconds *prometheus.HistogramVec

	// TestRunsTotal counts runner invocations by kind (all, one, selected)
	// and result (ok, error).
	TestRunsTotal *prometheus.CounterVec

	CommitsTotal   prometheus.Counter
	RollbacksTotal prometheus.Counter

	PassingTests prometheus.Gauge
	FailingTests prometheus.Gauge
}

// NewMetrics creates and registers the session metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "attempts_total",
				Help:      "Fix attempts by outcome",
			},
			[]string{"outcome"},
		),
		AttemptDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "attempt_duration_seconds",
				Help:      "Wall time of one iteration",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
		),
		AgentDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "agent_duration_seconds",
				Help:      "Agent run time by result",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"result"},
		),
		TestRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "test_runs_total",
				Help:      "Test runner invocations by kind and result",
			},
			[]string{"kind", "result"},
		),
		CommitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commits_total",
			Help:      "Fix commits created",
		}),
		RollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rollbacks_total",
			Help:      "Working tree rollbacks",
		}),
		PassingTests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "passing_tests",
			Help:      "Tests known to pass at the last committed state",
		}),
		FailingTests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "failing_tests",
			Help:      "Tests still failing",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAttempt records a finished iteration.
func (m *Metrics) ObserveAttempt(rec core.AttemptRecord) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(string(rec.Outcome)).Inc()
	m.AttemptDurationSeconds.Observe(rec.Duration.Seconds())
	if rec.Committed {
		m.CommitsTotal.Inc()
	}
}

// ObserveAgent records one agent run.
func (m *Metrics) ObserveAgent(kind AgentOutcomeKind, d time.Duration) {
	if m == nil {
		return
	}
	m.AgentDurationSeconds.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// ObserveTestRun records one runner invocation.
func (m *Metrics) ObserveTestRun(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TestRunsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRollback counts a rollback.
func (m *Metrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.RollbacksTotal.Inc()
}

// SetCounts updates the passing and failing gauges.
func (m *Metrics) SetCounts(passing, failing int) {
	if m == nil {
		return
	}
	m.PassingTests.Set(float64(passing))
	m.FailingTests.Set(float64(failing))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
