package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCommand("shell", OutcomeOK, 10*time.Millisecond)
	m.ObserveCommand("shell", OutcomeOK, 20*time.Millisecond)
	m.ObserveCommand("shell", OutcomeTimeout, time.Second)
	m.ChildStarted()
	m.ChildStarted()
	m.ChildGone()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commands.WithLabelValues("shell", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("shell", OutcomeTimeout)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Spawns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Children))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommand("oneshot", OutcomeFailure, time.Second)
		m.ChildStarted()
		m.ChildGone()
	})
}
