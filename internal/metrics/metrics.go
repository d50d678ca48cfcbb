// Package metrics defines the prometheus collectors exported by the
// runner layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Command outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeFailure    = "failure"
	OutcomeTimeout    = "timeout"
	OutcomeSpawnError = "spawn_error"
)

// Metrics groups the runner collectors. A nil *Metrics records nothing.
type Metrics struct {
	Commands *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Spawns   prometheus.Counter
	Children prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barnhunt",
			Subsystem: "runner",
			Name:      "commands_total",
			Help:      "Inkscape commands executed, by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "barnhunt",
			Subsystem: "runner",
			Name:      "command_duration_seconds",
			Help:      "Time spent executing one inkscape command.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"strategy"}),
		Spawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barnhunt",
			Subsystem: "runner",
			Name:      "spawns_total",
			Help:      "Interactive inkscape processes started.",
		}),
		Children: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "barnhunt",
			Subsystem: "runner",
			Name:      "children",
			Help:      "Interactive inkscape processes currently alive.",
		}),
	}
	reg.MustRegister(m.Commands, m.Duration, m.Spawns, m.Children)
	return m
}

// ObserveCommand records one finished command.
func (m *Metrics) ObserveCommand(strategy, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(strategy, outcome).Inc()
	m.Duration.WithLabelValues(strategy).Observe(d.Seconds())
}

// ChildStarted records a new interactive process.
func (m *Metrics) ChildStarted() {
	if m == nil {
		return
	}
	m.Spawns.Inc()
	m.Children.Inc()
}

// ChildGone records the end of an interactive process.
func (m *Metrics) ChildGone() {
	if m == nil {
		return
	}
	m.Children.Dec()
}
