package consciousness

import (
	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/evolution"
	"github.com/danielpatrickdp/anima-core/internal/gate"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region core-config
// CoreConfig holds the orchestrator parameters.
type CoreConfig struct {
	HistorySize     int // bounded pre-update snapshot history (default 100)
	StabilityWindow int // snapshots used for the stability index (default 10)
}

// DefaultCoreConfig returns sensible defaults.
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		HistorySize:     100,
		StabilityWindow: 10,
	}
}

// #endregion core-config

// #region interaction
// Interaction is the context of the update being applied. A zero value is a
// background tick.
type Interaction struct {
	Strength          float64
	Keywords          []string
	PatternComplexity float64
	Source            string // "interact" | "tick", for error context only
}

// #endregion interaction

// #region outcome
// Outcome is what one update produced. Metrics is always valid: when
// Degraded is set it holds the fallback and Err names the failure that was
// reported.
type Outcome struct {
	Metrics        state.ConsciousnessMetrics
	Awareness      awareness.Result
	Step           evolution.StepResult
	Gate           gate.GateDecision
	StabilityIndex float64
	Degraded       bool
	Err            error
}

// #endregion outcome
