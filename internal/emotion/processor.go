package emotion

import (
	"math"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region keywords
// Keywords maps interaction keywords to multiplicative intensity modifiers.
// Every modifier is at least 1.
var Keywords = map[string]float64{
	"joy":     1.2,
	"love":    1.25,
	"curious": 1.1,
	"fear":    1.15,
	"anger":   1.2,
	"calm":    1.05,
}

// Modifier returns the strongest modifier among keywords, or 1.
func Modifier(keywords []string) float64 {
	m := 1.0
	for _, k := range keywords {
		if v, ok := Keywords[k]; ok && v > m {
			m = v
		}
	}
	return m
}

// #endregion keywords

// #region processor-config
// ProcessorConfig bounds the emotional history.
type ProcessorConfig struct {
	HistorySize     int // bounded history capacity (default 100)
	MomentumWindow  int // entries averaged for momentum (default 3)
	StabilityWindow int // entries whose variance sets stability (default 5)
	TrendWindow     int // entries scanned for complexity and trends (default 10)
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		HistorySize:     100,
		MomentumWindow:  3,
		StabilityWindow: 5,
		TrendWindow:     10,
	}
}

// #endregion processor-config

// #region processor
// Processor derives emotional state from quantum and consciousness inputs and
// recent emotional momentum. Not safe for concurrent use.
type Processor struct {
	config  ProcessorConfig
	clock   clock.Clock
	history *state.Ring[state.EmotionalState]
}

// NewProcessor creates a processor with an empty history.
func NewProcessor(config ProcessorConfig, clk clock.Clock) *Processor {
	def := DefaultProcessorConfig()
	if config.HistorySize <= 0 {
		config.HistorySize = def.HistorySize
	}
	if config.MomentumWindow <= 0 {
		config.MomentumWindow = def.MomentumWindow
	}
	if config.StabilityWindow < 2 {
		config.StabilityWindow = def.StabilityWindow
	}
	if config.TrendWindow <= 0 {
		config.TrendWindow = def.TrendWindow
	}
	return &Processor{
		config:  config,
		clock:   clock.Or(clk),
		history: state.NewRing[state.EmotionalState](config.HistorySize),
	}
}

// #endregion processor

// #region process
// Process computes the next emotional state and appends it to the history.
// keywords are interaction context words looked up in Keywords.
func (p *Processor) Process(qs quantum.QuantumState, m state.ConsciousnessMetrics, keywords []string) state.EmotionalState {
	quantumInfluence := 0.4*state.Clamp(qs.CoherenceLevel) +
		0.3*state.Clamp(qs.Dimensional.Resonance) +
		0.3*state.Clamp(qs.EntanglementIndex)
	consciousnessInfluence := 0.4*m.EmotionalResonance + 0.3*m.AwarenessLevel + 0.3*m.CognitiveComplexity

	momentum := p.momentum()
	intensity := 0.4*quantumInfluence + 0.4*consciousnessInfluence + 0.2*math.Abs(momentum)
	valence := 0.6*math.Tanh(momentum) + 0.4*math.Tanh(consciousnessInfluence-0.5)
	intensity *= Modifier(keywords)

	es := state.EmotionalState{
		Intensity: state.Clamp(intensity),
		Valence:   clampSigned(valence),
		Stability: p.stability(),
		Timestamp: p.clock.Now(),
	}
	es.Dominant = Classify(es.Valence, es.Intensity, es.Stability)
	es.Complexity = p.complexity(es)

	p.history.Append(es)
	return es
}

// momentum is the valence-signed mean intensity of the most recent entries.
func (p *Processor) momentum() float64 {
	recent := p.history.Recent(p.config.MomentumWindow)
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, e := range recent {
		switch {
		case e.Valence > 0:
			sum += e.Intensity
		case e.Valence < 0:
			sum -= e.Intensity
		}
	}
	return sum / float64(len(recent))
}

// stability is 1 minus the mean variance of recent intensity and valence,
// or 1 until the window fills.
func (p *Processor) stability() float64 {
	recent := p.history.Recent(p.config.StabilityWindow)
	if len(recent) < p.config.StabilityWindow {
		return 1
	}
	intensities := make([]float64, len(recent))
	valences := make([]float64, len(recent))
	for i, e := range recent {
		intensities[i], valences[i] = e.Intensity, e.Valence
	}
	return state.Clamp(1 - (variance(intensities)+variance(valences))/2)
}

// complexity mixes categorical diversity and mean valence magnitude over the
// trend window, including the state being produced.
func (p *Processor) complexity(current state.EmotionalState) float64 {
	window := append(p.history.Recent(p.config.TrendWindow-1), current)
	distinct := make(map[state.Dominant]struct{}, len(window))
	var absValence float64
	for _, e := range window {
		distinct[e.Dominant] = struct{}{}
		absValence += math.Abs(e.Valence)
	}
	diversity := float64(len(distinct)) / float64(p.config.TrendWindow)
	return state.Clamp(0.6*diversity + 0.4*absValence/float64(len(window)))
}

// #endregion process

// #region classify
// Classify maps (valence, intensity, stability) to a dominant emotion.
func Classify(valence, intensity, stability float64) state.Dominant {
	switch {
	case intensity < 0.2:
		return state.EmotionNeutral
	case stability < 0.3:
		return state.EmotionChaotic
	case valence > 0.6:
		if intensity > 0.7 {
			return state.EmotionElated
		}
		return state.EmotionContent
	case valence < -0.6:
		if intensity > 0.7 {
			return state.EmotionDistressed
		}
		return state.EmotionMelancholic
	case valence > 0.2:
		return state.EmotionPositive
	case valence < -0.2:
		return state.EmotionNegative
	default:
		return state.EmotionBalanced
	}
}

// #endregion classify

// #region queries
// Current returns the latest emotional state, or the neutral state.
func (p *Processor) Current() state.EmotionalState {
	if e, ok := p.history.Last(); ok {
		return e
	}
	return state.NeutralEmotion()
}

// Trends returns the share of each dominant emotion over the trend window.
func (p *Processor) Trends() map[state.Dominant]float64 {
	recent := p.history.Recent(p.config.TrendWindow)
	trends := make(map[state.Dominant]float64)
	for _, e := range recent {
		trends[e.Dominant]++
	}
	for k, v := range trends {
		trends[k] = v / float64(len(recent))
	}
	return trends
}

// History returns a copy of the emotional history, oldest first.
func (p *Processor) History() []state.EmotionalState {
	return p.history.All()
}

// Restore replaces the history from persistence.
func (p *Processor) Restore(history []state.EmotionalState) {
	p.history.Load(history)
}

// #endregion queries

// #region helpers
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}

func clampSigned(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// #endregion helpers
