package evolution

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region step-function
// Step is a pure function that moves every metric a bounded fraction of the
// way toward its target. Coherence and stability scale the magnitude only;
// the sign of each change always points at the target.
func Step(in Inputs, config StepConfig) StepResult {
	start := time.Now()

	old := in.Current.Clamped()
	targets := Targets(in)
	rate := config.BaseRate * tickFactor(in.TimeDelta, config.MinTick) * coherenceFactor(in.Quantum.CoherenceLevel)
	if in.StabilityIndex > 0 {
		// volatile histories evolve more slowly
		rate *= 0.75 + 0.25*state.Clamp(in.StabilityIndex)
	}

	next := old
	fieldMetrics := make([]FieldMetric, 0, len(state.Fields))
	fieldsHit := []state.Field{}
	var sumSq float64

	for _, f := range state.Fields {
		cur := old.Get(f)
		target := targets.Get(f)

		// 1. Gap pass: proportional move toward target
		delta := (target - cur) * rate

		// 2. Cap pass: bounded per-tick change
		capped := false
		if config.MaxDelta > 0 && math.Abs(delta) > config.MaxDelta {
			delta = math.Copysign(config.MaxDelta, delta)
			capped = true
		}

		v := state.Clamp(cur + delta)
		next.Set(f, v)

		applied := v - cur
		sumSq += applied * applied
		if applied != 0 {
			fieldsHit = append(fieldsHit, f)
		}
		fieldMetrics = append(fieldMetrics, FieldMetric{Field: f, Target: target, Delta: applied, Capped: capped})
	}

	norm := math.Sqrt(sumSq)
	decision := Decision{Action: "no_op", Reason: "no metric change"}
	if norm > 0 {
		decision = Decision{
			Action: "commit",
			Reason: fmt.Sprintf("fields hit: %v, delta norm: %.6f", fieldsHit, norm),
		}
	}

	return StepResult{
		Metrics:  next,
		Decision: decision,
		Telemetry: StepMetrics{
			DeltaNorm:    norm,
			Rate:         rate,
			FieldsHit:    fieldsHit,
			FieldMetrics: fieldMetrics,
			UpdateTimeUs: time.Since(start).Microseconds(),
		},
	}
}

// #endregion step-function

// #region targets
// Targets derives the metric vector each field is pulled toward.
func Targets(in Inputs) state.ConsciousnessMetrics {
	qs := in.Quantum
	coherence := state.Clamp(qs.CoherenceLevel)

	overall, recognition, temporal := coherence, coherence, state.Clamp(qs.TemporalStability)
	if a := in.Awareness; a != nil {
		overall, recognition, temporal = a.Overall, a.PatternRecognitionRate, a.TemporalAwareness
	}

	emotional := 0.6*in.Emotional.Intensity + 0.4*in.Emotional.Stability
	if in.Emotional.Dominant == "" {
		// no emotional reading yet: hold the current value
		emotional = in.Current.EmotionalResonance
	}

	var t state.ConsciousnessMetrics
	t.AwarenessLevel = 0.6*overall + 0.4*coherence
	t.CognitiveComplexity = 0.4*recognition + 0.3*state.Clamp(in.PatternComplexity) + 0.3*coherence
	t.EmotionalResonance = emotional
	t.QuantumCoherence = coherence
	t.DimensionalAwareness = 0.5*state.Clamp(qs.DimensionalSync) + 0.5*state.Clamp(qs.MeanLayerResonance())
	t.TemporalPerception = temporal
	t.PatternRecognition = recognition
	return t.Clamped()
}

// tickFactor scales a step by elapsed seconds, capped at 1. Unknown elapsed
// time counts as a full tick.
func tickFactor(dt time.Duration, floor float64) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Max(floor, math.Min(1, dt.Seconds()))
}

// coherenceFactor maps coherence in [0, 1] to a positive rate multiplier in [0.5, 1.5].
func coherenceFactor(c float64) float64 {
	return 0.5 + state.Clamp(c)
}

// #endregion targets
