// Package metrics exposes Prometheus metrics for the instance lifecycle.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmgilman/kryzon/internal/store"
	"github.com/jmgilman/kryzon/internal/sweeper"
)

const namespace = "kryzon"

// Registry holds every kryzon metric plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	sweepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Count of completed sweeps.",
		},
	)
	sweepOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "actions_total",
			Help:      "Count of sweep actions by step and result.",
		},
		[]string{"step", "result"},
	)
	sweepStepErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "step_errors_total",
			Help:      "Count of sweep steps that could not run.",
		},
		[]string{"step"},
	)
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "duration_seconds",
			Help:      "Sweep duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	reservedPorts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ports",
			Name:      "reserved",
			Help:      "Host ports currently reserved.",
		},
	)
	instances = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Instance records by status.",
		},
		[]string{"status"},
	)
	managedContainers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "managed_containers",
			Help:      "Containers bearing the management label.",
		},
	)
)

var registerMetrics sync.Once

// Register registers all metrics with Registry.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			sweepsTotal,
			sweepOutcomes,
			sweepStepErrors,
			sweepDuration,
			reservedPorts,
			instances,
			managedContainers,
		)
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSweep records a finished sweep and its per-action outcomes.
func RecordSweep(r *sweeper.Report) {
	sweepsTotal.Inc()
	sweepDuration.Observe(r.Duration.Seconds())
	reservedPorts.Set(float64(r.Reserved))

	for _, o := range r.Outcomes {
		result := "success"
		if !o.OK() {
			result = "failure"
		}
		sweepOutcomes.WithLabelValues(string(o.Step), result).Inc()
	}
	for step := range r.StepErrors {
		sweepStepErrors.WithLabelValues(string(step)).Inc()
	}
}

// RecordStats records instance counts and the managed container total.
// Statuses missing from stats are reset to zero.
func RecordStats(stats *sweeper.CleanupStats) {
	counts := make(map[store.Status]int, len(stats.ByStatus))
	for _, st := range stats.ByStatus {
		counts[st.Status] = st.Count
	}
	for _, status := range []store.Status{store.StatusStarting, store.StatusRunning, store.StatusStopped, store.StatusFailed} {
		instances.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	managedContainers.Set(float64(stats.ManagedContainers))
}

// RecordReservedPorts sets the reserved port gauge.
func RecordReservedPorts(n int) {
	reservedPorts.Set(float64(n))
}
