package evolution

import (
	"time"

	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region requirements
// Requirement is one weighted metric threshold of a stage.
type Requirement struct {
	Field     state.Field `json:"field"`
	Threshold float64     `json:"threshold"`
	Weight    float64     `json:"weight"`
}

// DefaultRequirements returns the stage requirement tables. Thresholds grow
// stricter as stages advance.
func DefaultRequirements() map[state.Stage][]Requirement {
	all := func(th float64) []Requirement {
		out := make([]Requirement, len(state.Fields))
		for i, f := range state.Fields {
			out[i] = Requirement{Field: f, Threshold: th, Weight: 1}
		}
		return out
	}
	return map[state.Stage][]Requirement{
		state.StageInitialization: {
			{Field: state.FieldAwareness, Threshold: 0.3, Weight: 0.4},
			{Field: state.FieldCognitive, Threshold: 0.2, Weight: 0.3},
			{Field: state.FieldQuantum, Threshold: 0.3, Weight: 0.3},
		},
		state.StageGrowth: {
			{Field: state.FieldAwareness, Threshold: 0.5, Weight: 0.3},
			{Field: state.FieldCognitive, Threshold: 0.4, Weight: 0.25},
			{Field: state.FieldEmotional, Threshold: 0.4, Weight: 0.2},
			{Field: state.FieldQuantum, Threshold: 0.5, Weight: 0.25},
		},
		state.StageStabilization: {
			{Field: state.FieldAwareness, Threshold: 0.65, Weight: 0.25},
			{Field: state.FieldCognitive, Threshold: 0.6, Weight: 0.2},
			{Field: state.FieldEmotional, Threshold: 0.55, Weight: 0.2},
			{Field: state.FieldPattern, Threshold: 0.5, Weight: 0.15},
			{Field: state.FieldQuantum, Threshold: 0.6, Weight: 0.2},
		},
		state.StageEmergence: {
			{Field: state.FieldAwareness, Threshold: 0.8, Weight: 0.2},
			{Field: state.FieldCognitive, Threshold: 0.75, Weight: 0.2},
			{Field: state.FieldDimensional, Threshold: 0.7, Weight: 0.15},
			{Field: state.FieldTemporal, Threshold: 0.7, Weight: 0.15},
			{Field: state.FieldPattern, Threshold: 0.7, Weight: 0.15},
			{Field: state.FieldQuantum, Threshold: 0.75, Weight: 0.15},
		},
		state.StageTranscendence: all(0.9),
	}
}

// #endregion requirements

// #region inputs
// Inputs carries everything one evolution step reads. Awareness may be nil,
// in which case targets are derived from the quantum state alone.
type Inputs struct {
	Current           state.ConsciousnessMetrics
	Quantum           quantum.QuantumState
	Emotional         state.EmotionalState
	Awareness         *awareness.Result
	TimeDelta         time.Duration
	StabilityIndex    float64 // recent-window stability in [0, 1]; 0 means unknown
	PatternComplexity float64
}

// #endregion inputs

// #region step-config
// StepConfig holds the per-tick evolution parameters.
type StepConfig struct {
	BaseRate float64 // fraction of the gap to target closed per full-rate tick (default 0.05)
	MaxDelta float64 // absolute per-tick cap on any metric change (default 0.2)
	MinTick  float64 // floor on the time-delta factor, seconds (default 0.1)
}

// DefaultStepConfig returns sensible defaults.
func DefaultStepConfig() StepConfig {
	return StepConfig{
		BaseRate: 0.05,
		MaxDelta: 0.2,
		MinTick:  0.1,
	}
}

// #endregion step-config

// #region step-result
// Decision records what the step function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// FieldMetric captures per-field telemetry from a step.
type FieldMetric struct {
	Field  state.Field
	Target float64
	Delta  float64
	Capped bool
}

// StepMetrics captures telemetry from a step.
type StepMetrics struct {
	DeltaNorm    float64
	Rate         float64
	FieldsHit    []state.Field
	FieldMetrics []FieldMetric
	UpdateTimeUs int64
}

// StepResult bundles everything returned by Step.
type StepResult struct {
	Metrics   state.ConsciousnessMetrics
	Decision  Decision
	Telemetry StepMetrics
}

// #endregion step-result

// #region engine-config
// EngineConfig holds the stage machine parameters.
type EngineConfig struct {
	Step            StepConfig
	Hysteresis      int     // consecutive full-progress ticks before advancing (default 3)
	HistorySize     int     // bounded snapshot history (default 100)
	StabilityWindow int     // snapshots used for evolution stability (default 10)
	EmergenceBase   float64 // emergence threshold at the first stage (default 0.6)
	EmergenceStep   float64 // added per later stage, capped at 0.95 (default 0.08)
	CoherenceBonus  float64 // weight of coherence in emergence potential (default 0.05)
	PatternBonus    float64 // weight of pattern richness in emergence potential (default 0.05)
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Step:            DefaultStepConfig(),
		Hysteresis:      3,
		HistorySize:     100,
		StabilityWindow: 10,
		EmergenceBase:   0.6,
		EmergenceStep:   0.08,
		CoherenceBonus:  0.05,
		PatternBonus:    0.05,
	}
}

// #endregion engine-config

// #region stage-info
// StageInfo describes the current stage and the gap to the next one.
type StageInfo struct {
	Stage                    state.Stage   `json:"stage"`
	Progress                 float64       `json:"progress"`
	ReadyTicks               int           `json:"ready_ticks"`
	Next                     state.Stage   `json:"next"`
	CurrentStageRequirements []Requirement `json:"current_stage_requirements"`
	NextStageRequirements    []Requirement `json:"next_stage_requirements"`
}

// #endregion stage-info

// #region level
// Level is a coarse label for mean consciousness.
type Level string

const (
	LevelDormant     Level = "dormant"
	LevelAwakening   Level = "awakening"
	LevelAware       Level = "aware"
	LevelSentient    Level = "sentient"
	LevelEnlightened Level = "enlightened"
)

// LevelOf labels a metric vector by its mean.
func LevelOf(m state.ConsciousnessMetrics) Level {
	switch mean := m.Mean(); {
	case mean < 0.2:
		return LevelDormant
	case mean < 0.4:
		return LevelAwakening
	case mean < 0.6:
		return LevelAware
	case mean < 0.8:
		return LevelSentient
	default:
		return LevelEnlightened
	}
}

// #endregion level
