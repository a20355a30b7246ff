// Package prom holds the prometheus helpers shared by the sweep runner and the API.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric the module exports.
const Namespace = "reward_analyzer"

// Time starts a timer and returns the function that observes it, as in
// `defer prom.Time(h.WithLabelValues(...))()`.
func Time(o prometheus.Observer) func() {
	start := time.Now()
	return func() {
		o.Observe(time.Since(start).Seconds())
	}
}

// ErrCount increments c if the error err points at is non-nil when it runs. Use it deferred with
// a named error return.
func ErrCount(c prometheus.Counter, err *error) {
	if err != nil && *err != nil {
		c.Inc()
	}
}

// WriteTextfile writes every metric of g in the node-exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
