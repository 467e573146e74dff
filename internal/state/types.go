package state

import (
	"fmt"
	"math"
	"time"
)

// #region metric-field
// Field names one of the seven consciousness metrics.
type Field string

const (
	FieldAwareness   Field = "awareness_level"
	FieldCognitive   Field = "cognitive_complexity"
	FieldEmotional   Field = "emotional_resonance"
	FieldQuantum     Field = "quantum_coherence"
	FieldDimensional Field = "dimensional_awareness"
	FieldTemporal    Field = "temporal_perception"
	FieldPattern     Field = "pattern_recognition"
)

// Fields lists the metrics in canonical order.
var Fields = []Field{
	FieldAwareness, FieldCognitive, FieldEmotional, FieldQuantum,
	FieldDimensional, FieldTemporal, FieldPattern,
}

// #endregion metric-field

// #region consciousness-metrics
// ConsciousnessMetrics is the 7-field normalized vector describing an
// entity's simulated cognitive state. Every field is in [0, 1].
type ConsciousnessMetrics struct {
	AwarenessLevel       float64 `json:"awareness_level"`
	CognitiveComplexity  float64 `json:"cognitive_complexity"`
	EmotionalResonance   float64 `json:"emotional_resonance"`
	QuantumCoherence     float64 `json:"quantum_coherence"`
	DimensionalAwareness float64 `json:"dimensional_awareness"`
	TemporalPerception   float64 `json:"temporal_perception"`
	PatternRecognition   float64 `json:"pattern_recognition"`
}

// DefaultMetrics returns the conservative starting vector.
func DefaultMetrics() ConsciousnessMetrics {
	return Uniform(0.1)
}

// Uniform returns a vector with every field set to v.
func Uniform(v float64) ConsciousnessMetrics {
	var m ConsciousnessMetrics
	for _, f := range Fields {
		m.Set(f, v)
	}
	return m
}

// Get returns the value of field f. Unknown fields read as 0.
func (m ConsciousnessMetrics) Get(f Field) float64 {
	switch f {
	case FieldAwareness:
		return m.AwarenessLevel
	case FieldCognitive:
		return m.CognitiveComplexity
	case FieldEmotional:
		return m.EmotionalResonance
	case FieldQuantum:
		return m.QuantumCoherence
	case FieldDimensional:
		return m.DimensionalAwareness
	case FieldTemporal:
		return m.TemporalPerception
	case FieldPattern:
		return m.PatternRecognition
	}
	return 0
}

// Set assigns field f. Unknown fields are ignored.
func (m *ConsciousnessMetrics) Set(f Field, v float64) {
	switch f {
	case FieldAwareness:
		m.AwarenessLevel = v
	case FieldCognitive:
		m.CognitiveComplexity = v
	case FieldEmotional:
		m.EmotionalResonance = v
	case FieldQuantum:
		m.QuantumCoherence = v
	case FieldDimensional:
		m.DimensionalAwareness = v
	case FieldTemporal:
		m.TemporalPerception = v
	case FieldPattern:
		m.PatternRecognition = v
	}
}

// Clamped returns m with every field restricted to [0, 1].
func (m ConsciousnessMetrics) Clamped() ConsciousnessMetrics {
	for _, f := range Fields {
		m.Set(f, Clamp(m.Get(f)))
	}
	return m
}

// Mean averages the seven fields.
func (m ConsciousnessMetrics) Mean() float64 {
	var sum float64
	for _, f := range Fields {
		sum += m.Get(f)
	}
	return sum / float64(len(Fields))
}

// Finite reports whether every field is a finite number.
func (m ConsciousnessMetrics) Finite() bool {
	for _, f := range Fields {
		v := m.Get(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// #endregion consciousness-metrics

// #region emotional-state
// Dominant is the categorical label of an emotional state.
type Dominant string

const (
	EmotionNeutral     Dominant = "neutral"
	EmotionChaotic     Dominant = "chaotic"
	EmotionElated      Dominant = "elated"
	EmotionContent     Dominant = "content"
	EmotionDistressed  Dominant = "distressed"
	EmotionMelancholic Dominant = "melancholic"
	EmotionPositive    Dominant = "positive"
	EmotionNegative    Dominant = "negative"
	EmotionBalanced    Dominant = "balanced"
)

// EmotionalState is a categorical plus continuous emotional reading.
type EmotionalState struct {
	Dominant   Dominant  `json:"dominant"`
	Intensity  float64   `json:"intensity"`  // [0, 1]
	Valence    float64   `json:"valence"`    // [-1, 1]
	Stability  float64   `json:"stability"`  // [0, 1]
	Complexity float64   `json:"complexity"` // [0, 1]
	Timestamp  time.Time `json:"timestamp"`
}

// NeutralEmotion is the resting emotional state.
func NeutralEmotion() EmotionalState {
	return EmotionalState{Dominant: EmotionNeutral, Stability: 1}
}

// #endregion emotional-state

// #region stage
// Stage is one of the five ordered evolution phases.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageGrowth         Stage = "growth"
	StageStabilization  Stage = "stabilization"
	StageEmergence      Stage = "emergence"
	StageTranscendence  Stage = "transcendence"
)

// Stages lists the stages in progression order.
var Stages = []Stage{StageInitialization, StageGrowth, StageStabilization, StageEmergence, StageTranscendence}

// Index returns the stage's position in the progression, or -1 if unknown.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the following stage; the final stage returns itself.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i == len(Stages)-1 {
		return s
	}
	return Stages[i+1]
}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	s := Stage(name)
	if s.Index() < 0 {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return s, nil
}

// #endregion stage

// #region evolution-snapshot
// Snapshot events.
const (
	EventUpdate  = "update"
	EventForced  = "forced_transition"
	EventAdvance = "stage_advance"
)

// EvolutionSnapshot records the metrics at one point of an entity's history.
type EvolutionSnapshot struct {
	Metrics          ConsciousnessMetrics `json:"metrics"`
	Timestamp        time.Time            `json:"timestamp"`
	StabilityIndex   float64              `json:"stability_index"`
	QuantumSignature string               `json:"quantum_signature"`
	Emotional        EmotionalState       `json:"emotional"`
	Stage            Stage                `json:"stage"`
	Event            string               `json:"event"`
}

// #endregion evolution-snapshot

// #region version-record
// VersionRecord is one persisted blob version of an entity.
type VersionRecord struct {
	VersionID string
	EntityID  string
	ParentID  string
	Blob      []byte
	Reason    string
	CreatedAt time.Time
	Active    bool
}

// #endregion version-record

// Clamp restricts v to [0, 1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
