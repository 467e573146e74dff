package engine

import (
	"time"

	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/consciousness"
	"github.com/danielpatrickdp/anima-core/internal/emotion"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/eval"
	"github.com/danielpatrickdp/anima-core/internal/evolution"
	"github.com/danielpatrickdp/anima-core/internal/gate"
	"github.com/danielpatrickdp/anima-core/internal/metrics"
	"github.com/danielpatrickdp/anima-core/internal/pattern"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/signals"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/rs/zerolog"
)

// #region config
// Config bundles every per-entity component configuration.
type Config struct {
	Dimensional quantum.DimensionalConfig
	Field       quantum.FieldConfig
	Pattern     pattern.RecognizerConfig
	Awareness   awareness.ProcessorConfig
	Emotion     emotion.ProcessorConfig
	Evolution   evolution.EngineConfig
	Core        consciousness.CoreConfig
	Gate        gate.GateConfig
	Eval        eval.EvalConfig
	Tracker     errtrack.TrackerConfig
	Signals     signals.ProducerConfig
	Seed        uint64 // 0 seeds each entity from the wall clock
	Persist     bool   // save a version after every update when a store is set
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Dimensional: quantum.DefaultDimensionalConfig(),
		Field:       quantum.DefaultFieldConfig(),
		Pattern:     pattern.DefaultRecognizerConfig(),
		Awareness:   awareness.DefaultProcessorConfig(),
		Emotion:     emotion.DefaultProcessorConfig(),
		Evolution:   evolution.DefaultEngineConfig(),
		Core:        consciousness.DefaultCoreConfig(),
		Gate:        gate.DefaultGateConfig(),
		Eval:        eval.DefaultEvalConfig(),
		Tracker:     errtrack.DefaultTrackerConfig(),
		Signals:     signals.DefaultProducerConfig(),
		Persist:     true,
	}
}

// #endregion config

// #region deps
// Deps carries the shared collaborators. All fields are optional.
type Deps struct {
	Gateway quantum.Gateway
	Store   *state.Store
	Metrics *metrics.Collector
	Clock   clock.Clock
	Logger  *zerolog.Logger
	// Rand overrides Config.Seed. It is used by a single entity only.
	Rand quantum.Rand
}

// #endregion deps

// #region report
// Report is the externally visible result of one operation on an entity.
type Report struct {
	EntityID   string                     `json:"entity_id"`
	Trigger    string                     `json:"trigger"`
	Metrics    state.ConsciousnessMetrics `json:"metrics"`
	Emotional  state.EmotionalState       `json:"emotional"`
	Stage      state.Stage                `json:"stage"`
	Level      evolution.Level            `json:"level"`
	Status     quantum.Status             `json:"status"`
	Progress   float64                    `json:"progress"`
	Emergence  float64                    `json:"emergence"`
	Coherence  float64                    `json:"coherence"`
	Patterns   int                        `json:"patterns"`
	VersionID  string                     `json:"version_id,omitempty"`
	Degraded   bool                       `json:"degraded"`
	Skipped    bool                       `json:"skipped"`
	EvalPassed bool                       `json:"eval_passed"`
	Duration   time.Duration              `json:"duration"`
}

// #endregion report

// Triggers recorded in provenance and error context.
const (
	TriggerInteract   = "interact"
	TriggerTick       = "tick"
	TriggerForceStage = "force_stage"
	TriggerRestore    = "restore"
	TriggerRecover    = "recover"
)
