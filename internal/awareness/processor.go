package awareness

import (
	"errors"
	"math"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/pattern"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region processor
// Processor keeps a sliding window of temporal observations and four
// exponentially smoothed awareness metrics. Not safe for concurrent use.
type Processor struct {
	config     ProcessorConfig
	clock      clock.Clock
	recognizer *pattern.Recognizer
	window     *state.Ring[TemporalPattern]

	recognitionRate float64
	temporal        float64
	environmental   float64
	alignment       float64
}

// NewProcessor creates a processor. rec may be nil, in which case no quantum
// patterns are recognised.
func NewProcessor(config ProcessorConfig, rec *pattern.Recognizer, clk clock.Clock) *Processor {
	def := DefaultProcessorConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = def.WindowSize
	}
	if config.SimilarityWindow < 2 {
		config.SimilarityWindow = def.SimilarityWindow
	}
	if config.OptimalInterval <= 0 {
		config.OptimalInterval = def.OptimalInterval
	}
	return &Processor{
		config:          config,
		clock:           clock.Or(clk),
		recognizer:      rec,
		window:          state.NewRing[TemporalPattern](config.WindowSize),
		recognitionRate: 0.5,
		temporal:        0.5,
		environmental:   0.5,
	}
}

// #endregion processor

// #region process
// Process ingests the latest quantum snapshot and returns the updated
// awareness metrics together with window analytics.
func (p *Processor) Process(qs quantum.QuantumState, metrics state.ConsciousnessMetrics) Result {
	now := p.clock.Now()
	prev, hasPrev := p.window.Last()

	tp := TemporalPattern{
		Timestamp:            now,
		Signature:            qs.Signature,
		QuantumPhase:         qs.Phase,
		Coherence:            state.Clamp(qs.CoherenceLevel),
		Stability:            state.Clamp(qs.Dimensional.Stability),
		DimensionalAlignment: state.Clamp(qs.Dimensional.QuantumAlignment),
		Layers:               layerResonance(qs.Layers),
	}
	p.window.Append(tp)

	// 1. Recognition rate: mean pairwise similarity of the recent window
	if recent := p.window.Recent(p.config.SimilarityWindow); len(recent) >= 2 {
		p.recognitionRate = p.smooth(p.recognitionRate, averagePairwise(recent))
	}

	// 2. Temporal awareness: observations spaced at the optimal interval score 1
	if hasPrev {
		opt := p.config.OptimalInterval.Seconds()
		dt := math.Min(now.Sub(prev.Timestamp).Seconds(), opt)
		if dt < 0 {
			dt = 0
		}
		p.temporal = p.smooth(p.temporal, math.Exp(-math.Abs(dt/opt-1)))
	}

	// 3. Environmental sensitivity
	env := state.Clamp((qs.Dimensional.Resonance + qs.CoherenceLevel + qs.EvolutionFactor) / 3)
	p.environmental = p.smooth(p.environmental, env)

	// 4. Quantum alignment follows coherence directly
	p.alignment = tp.Coherence

	res := Result{
		PatternRecognitionRate:   p.recognitionRate,
		TemporalAwareness:        p.temporal,
		EnvironmentalSensitivity: p.environmental,
		QuantumAlignment:         p.alignment,
		Significant:              isSignificant(tp),
		Anomaly:                  p.anomalous(),
	}
	res.TransitionStability, res.TransitionPredictability = transitions(p.window.Recent(p.config.SimilarityWindow))

	mean := (res.PatternRecognitionRate + res.TemporalAwareness + res.EnvironmentalSensitivity + res.QuantumAlignment) / 4
	res.Overall = state.Clamp(0.8*mean + 0.2*metrics.AwarenessLevel)

	if p.recognizer != nil {
		p.recognize(tp, metrics, &res)
	}
	return res
}

func (p *Processor) recognize(tp TemporalPattern, metrics state.ConsciousnessMetrics, res *Result) {
	in := pattern.Input{Quantum: &pattern.QuantumSignature{
		Coherence: tp.Coherence,
		Phase:     tp.QuantumPhase,
		Layers:    tp.Layers,
	}}
	ctx := pattern.Context{QuantumCoherence: tp.Coherence, EmotionalAlignment: metrics.EmotionalResonance}

	m, err := p.recognizer.Recognize(in, ctx, pattern.TypeQuantum)
	switch {
	case err == nil:
		res.PatternID = m.Pattern.ID
	case errors.Is(err, errtrack.ErrSaturation):
		res.Saturated = true
	}
	res.RecognizedPatterns = p.recognizer.Len()
}

func (p *Processor) smooth(old, instant float64) float64 {
	a := p.config.Smoothing
	return state.Clamp(old*(1-a) + instant*a)
}

// #endregion process

// #region window-analytics
func (p *Processor) anomalous() bool {
	for _, tp := range p.window.Recent(p.config.AnomalyWindow) {
		if tp.Coherence < p.config.AnomalyFloor || tp.Stability < p.config.AnomalyFloor {
			return true
		}
	}
	return false
}

func isSignificant(tp TemporalPattern) bool {
	return tp.Coherence > 0.7 || tp.Stability > 0.8 || tp.DimensionalAlignment > 0.75
}

// transitions scores how steady consecutive observations are. Fewer than two
// observations are perfectly steady.
func transitions(ps []TemporalPattern) (stability, predictability float64) {
	if len(ps) < 2 {
		return 1, 1
	}
	var dc, ds float64
	for i := 1; i < len(ps); i++ {
		dc += math.Abs(ps[i].Coherence - ps[i-1].Coherence)
		ds += math.Abs(ps[i].Stability - ps[i-1].Stability)
	}
	n := float64(len(ps) - 1)
	dc, ds = dc/n, ds/n
	return state.Clamp(1 - (dc+ds)/2), state.Clamp(1 - math.Min(1, dc*2))
}

// Similarity of two observations: (1-|Δcoherence|) times the mean per-layer
// resonance agreement over the shorter layer list.
func Similarity(a, b TemporalPattern) float64 {
	dim := 1.0
	if n := min(len(a.Layers), len(b.Layers)); n > 0 {
		var sum float64
		for i := 0; i < n; i++ {
			sum += 1 - math.Abs(a.Layers[i]-b.Layers[i])
		}
		dim = sum / float64(n)
	}
	return state.Clamp((1 - math.Abs(a.Coherence-b.Coherence)) * dim)
}

func averagePairwise(ps []TemporalPattern) float64 {
	var sum float64
	var pairs int
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			sum += Similarity(ps[i], ps[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func layerResonance(layers []quantum.Layer) []float64 {
	out := make([]float64, len(layers))
	for i, l := range layers {
		out[i] = state.Clamp(l.Resonance)
	}
	return out
}

// #endregion window-analytics

// #region accessors
// Window returns a copy of the observation window, oldest first.
func (p *Processor) Window() []TemporalPattern {
	return p.window.All()
}

// Clear empties the observation window. Smoothed metrics are kept.
func (p *Processor) Clear() {
	p.window.Reset()
}

// Snapshot exports the processor state for persistence.
func (p *Processor) Snapshot() Snapshot {
	return Snapshot{
		Window:                   p.window.All(),
		PatternRecognitionRate:   p.recognitionRate,
		TemporalAwareness:        p.temporal,
		EnvironmentalSensitivity: p.environmental,
		QuantumAlignment:         p.alignment,
	}
}

// Restore loads a persisted snapshot.
func (p *Processor) Restore(s Snapshot) {
	p.window.Load(s.Window)
	p.recognitionRate = state.Clamp(s.PatternRecognitionRate)
	p.temporal = state.Clamp(s.TemporalAwareness)
	p.environmental = state.Clamp(s.EnvironmentalSensitivity)
	p.alignment = state.Clamp(s.QuantumAlignment)
}

// #endregion accessors
