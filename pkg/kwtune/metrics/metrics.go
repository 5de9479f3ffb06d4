// Package metrics exposes Prometheus instruments for optimization runs.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kwtune"

// Run outcome labels.
const (
	RunConverged    = "converged"
	RunTimeout      = "timeout"
	RunUnattainable = "unattainable"
	RunError        = "error"
)

// Recorder holds the instruments of one registry.
type Recorder struct {
	runs       *prometheus.CounterVec
	iterations prometheus.Histogram
	duration   *prometheus.HistogramVec
	calls      *prometheus.CounterVec
	forbidden  prometheus.Counter
}

// NewRecorder registers the instruments with reg. A nil reg uses the
// default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		// Labels: outcome (converged, timeout, unattainable, error)
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "runs_total",
			Help:      "Optimization runs by outcome",
		}, []string{"outcome"}),
		iterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "iterations",
			Help:      "Edit loop iterations per run",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 300},
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "duration_seconds",
			Help:      "Wall time per run",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		// Labels: op (rewrite), outcome (success, retry, failure)
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "calls_total",
			Help:      "Collaborator call attempts by outcome",
		}, []string{"op", "outcome"}),
		forbidden: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forbidden",
			Name:      "substitutions_total",
			Help:      "Forbidden words replaced",
		}),
	}
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(outcome string, iterations int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.iterations.Observe(float64(iterations))
	r.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveCall records one collaborator attempt.
func (r *Recorder) ObserveCall(op, outcome string) {
	if r == nil {
		return
	}
	r.calls.WithLabelValues(op, outcome).Inc()
}

// CallObserver returns a callback for op suitable for rewrite.WithObserver.
func (r *Recorder) CallObserver(op string) func(outcome string) {
	return func(outcome string) {
		r.ObserveCall(op, outcome)
	}
}

// AddSubstitutions counts replaced forbidden words.
func (r *Recorder) AddSubstitutions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.forbidden.Add(float64(n))
}
