package awareness

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/pattern"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func snapshot(coherence, stability float64, layers ...float64) quantum.QuantumState {
	qs := quantum.QuantumState{
		CoherenceLevel:  coherence,
		EvolutionFactor: 0.5,
		Signature:       "sig",
		Dimensional:     quantum.DimensionalState{Stability: stability, Resonance: 0.6, QuantumAlignment: 0.5},
	}
	for i, r := range layers {
		qs.Layers = append(qs.Layers, quantum.Layer{Index: i, Resonance: r})
	}
	return qs
}

func TestProcess_WindowBounded(t *testing.T) {
	cfg := DefaultProcessorConfig()
	cfg.WindowSize = 5
	clk := clock.NewManual(epoch)
	p := NewProcessor(cfg, nil, clk)

	for i := 0; i < 6; i++ {
		clk.Advance(time.Second)
		p.Process(snapshot(0.5, 0.5), state.DefaultMetrics())
	}
	w := p.Window()
	require.Len(t, w, 5)
	assert.Equal(t, epoch.Add(2*time.Second), w[0].Timestamp)
}

func TestProcess_MetricsInRange(t *testing.T) {
	clk := clock.NewManual(epoch)
	p := NewProcessor(DefaultProcessorConfig(), nil, clk)

	for i := 0; i < 40; i++ {
		clk.Advance(time.Duration(i%4) * 400 * time.Millisecond)
		res := p.Process(snapshot(float64(i%10)/9, 0.9, 1, 0, 0.5), state.Uniform(1))
		for _, v := range []float64{res.PatternRecognitionRate, res.TemporalAwareness, res.EnvironmentalSensitivity,
			res.QuantumAlignment, res.Overall, res.TransitionStability, res.TransitionPredictability} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestProcess_SteadyObservationsRaiseRecognition(t *testing.T) {
	clk := clock.NewManual(epoch)
	p := NewProcessor(DefaultProcessorConfig(), nil, clk)

	var res Result
	for i := 0; i < 20; i++ {
		clk.Advance(time.Second)
		res = p.Process(snapshot(0.8, 0.9, 0.7, 0.7), state.DefaultMetrics())
	}
	assert.Greater(t, res.PatternRecognitionRate, 0.95)
	// spacing equals the optimal interval
	assert.Greater(t, res.TemporalAwareness, 0.95)
	assert.Equal(t, 0.8, res.QuantumAlignment)
	assert.True(t, res.Significant)
	assert.False(t, res.Anomaly)
	assert.InDelta(t, 1.0, res.TransitionStability, 1e-9)
}

func TestProcess_RapidObservationsLowerTemporalAwareness(t *testing.T) {
	clk := clock.NewManual(epoch)
	p := NewProcessor(DefaultProcessorConfig(), nil, clk)

	var res Result
	for i := 0; i < 20; i++ {
		clk.Advance(50 * time.Millisecond)
		res = p.Process(snapshot(0.5, 0.5), state.DefaultMetrics())
	}
	assert.Less(t, res.TemporalAwareness, 0.5)
}

func TestProcess_DetectsAnomaly(t *testing.T) {
	clk := clock.NewManual(epoch)
	p := NewProcessor(DefaultProcessorConfig(), nil, clk)

	p.Process(snapshot(0.6, 0.6), state.DefaultMetrics())
	res := p.Process(snapshot(0.1, 0.6), state.DefaultMetrics())
	assert.True(t, res.Anomaly)
	assert.Less(t, res.TransitionPredictability, 1.0)

	for i := 0; i < 5; i++ {
		res = p.Process(snapshot(0.6, 0.6), state.DefaultMetrics())
	}
	assert.False(t, res.Anomaly)
}

func TestProcess_FeedsRecognizer(t *testing.T) {
	clk := clock.NewManual(epoch)
	rec := pattern.NewRecognizer(pattern.DefaultRecognizerConfig(), clk)
	p := NewProcessor(DefaultProcessorConfig(), rec, clk)

	first := p.Process(snapshot(0.7, 0.7, 0.5, 0.5), state.DefaultMetrics())
	second := p.Process(snapshot(0.7, 0.7, 0.5, 0.5), state.DefaultMetrics())

	require.NotEmpty(t, first.PatternID)
	assert.Equal(t, first.PatternID, second.PatternID)
	assert.Equal(t, 1, second.RecognizedPatterns)
	assert.False(t, second.Saturated)
}

func TestSimilarity(t *testing.T) {
	a := TemporalPattern{Coherence: 0.8, Layers: []float64{0.5, 0.5, 0.9}}
	b := TemporalPattern{Coherence: 0.8, Layers: []float64{0.5, 0.5}}
	assert.Equal(t, 1.0, Similarity(a, b))

	c := TemporalPattern{Coherence: 0.3, Layers: []float64{0.5, 0.5}}
	assert.InDelta(t, 0.5, Similarity(a, c), 1e-9)
}

func TestSnapshotRestore(t *testing.T) {
	clk := clock.NewManual(epoch)
	p := NewProcessor(DefaultProcessorConfig(), nil, clk)
	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		p.Process(snapshot(0.9, 0.9), state.DefaultMetrics())
	}
	saved := p.Snapshot()

	q := NewProcessor(DefaultProcessorConfig(), nil, clk)
	q.Restore(saved)
	assert.Equal(t, saved, q.Snapshot())

	q.Clear()
	assert.Empty(t, q.Window())
	assert.Equal(t, saved.QuantumAlignment, q.Snapshot().QuantumAlignment)
}
