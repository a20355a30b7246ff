package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/apartresearch/reward-analyzer/internal/prom"
)

const subsystem = "sweep"

// Metrics are the runner's prometheus collectors.
type Metrics struct {
	experiments   *prometheus.CounterVec
	failures      *prometheus.CounterVec
	trainDuration *prometheus.HistogramVec
	saveRetries   prometheus.Counter
}

// NewMetrics creates the runner's collectors and registers them with reg, if given.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		experiments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prom.Namespace,
			Subsystem: subsystem,
			Name:      "experiments_total",
			Help:      "Experiments run, by variant and outcome.",
		}, []string{"variant", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prom.Namespace,
			Subsystem: subsystem,
			Name:      "stage_errors_total",
			Help:      "Errors by pipeline stage.",
		}, []string{"stage"}),
		trainDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prom.Namespace,
			Subsystem: subsystem,
			Name:      "train_seconds",
			Help:      "Time spent training one experiment.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"variant"}),
		saveRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: prom.Namespace,
			Subsystem: subsystem,
			Name:      "save_retries_total",
			Help:      "Retried artifact saves.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.experiments, m.failures, m.trainDuration, m.saveRetries)
	}
	return m
}
