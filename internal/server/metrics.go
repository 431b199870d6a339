package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for descent runs.
type Metrics struct {
	// Runs counts finished runs by method and outcome
	Runs *prometheus.CounterVec
	// Iterations observes the number of update steps per run
	Iterations *prometheus.HistogramVec
	// GradientEvaluations counts oracle gradient calls
	GradientEvaluations *prometheus.CounterVec
	// RunDuration observes wall time per run
	RunDuration *prometheus.HistogramVec
	// ActiveJobs is the number of runs currently holding a worker slot
	ActiveJobs prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_runs_total",
				Help: "Finished descent runs by method and outcome",
			},
			[]string{"method", "status"},
		),
		Iterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "momentum_iterations",
				Help:    "Update steps performed per run",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
			[]string{"method"},
		),
		GradientEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_gradient_evaluations_total",
				Help: "Gradient oracle calls by method",
			},
			[]string{"method"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "momentum_run_duration_seconds",
				Help:    "Wall time of a single run",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "momentum_active_jobs",
				Help: "Runs currently executing",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Runs, m.Iterations, m.GradientEvaluations, m.RunDuration, m.ActiveJobs)
	}
	return m
}
