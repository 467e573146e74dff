package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CountsAndGauges(t *testing.T) {
	c := NewCollector("anima")

	c.ObserveInteraction(2 * time.Millisecond)
	c.ObserveInteraction(3 * time.Millisecond)
	c.ObserveTick(time.Millisecond, false)
	c.ObserveTick(0, true)
	c.ObserveError("QUANTUM", "CRITICAL")
	c.ObserveRecovery("QUANTUM", "ok")
	c.ObserveTransition("initialization", "growth", false)
	c.ObserveEvalFailure()
	c.SetEntity("e1", 1, 0.4, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Interactions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TicksSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EvalFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Errors.WithLabelValues("QUANTUM", "CRITICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Recoveries.WithLabelValues("QUANTUM", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StageTransitions.WithLabelValues("initialization", "growth", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Stage.WithLabelValues("e1")))
	assert.Equal(t, 0.4, testutil.ToFloat64(c.AwarenessLevel.WithLabelValues("e1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.QuantumStatus.WithLabelValues("e1")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("anima")
	b := NewCollector("anima")
	a.ObserveInteraction(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Interactions))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Interactions))
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveInteraction(time.Second)
		c.ObserveTick(time.Second, true)
		c.ObserveError("STATE", "LOW")
		c.SetEntity("e1", 0, 0, 0)
		c.ForgetEntity("e1")
	})
	lines, err := c.Summary()
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector("anima")
	c.ObserveInteraction(time.Millisecond)
	c.SetEntity("e1", 2, 0.5, 0)
	c.ForgetEntity("e2")

	lines, err := c.Summary()
	require.NoError(t, err)
	assert.Contains(t, lines, "anima_interactions_total 1")
	assert.Contains(t, lines, `anima_stage{entity="e1"} 2`)
	assert.Contains(t, lines, "anima_update_duration_seconds 1")
}
