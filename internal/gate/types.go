package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoNonFinite  VetoType = "non_finite"
	VetoDeltaCap   VetoType = "delta_cap"
	VetoOutOfRange VetoType = "out_of_range"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for gate decisions.
type GateConfig struct {
	MaxDelta     float64 // max absolute per-field change per tick
	Epsilon      float64 // tolerance added to MaxDelta
	MaxDeltaNorm float64 // soft: deltas above this L2 norm score as unstable
}

// DefaultGateConfig returns sensible defaults.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MaxDelta:     0.2,
		Epsilon:      1e-9,
		MaxDeltaNorm: 0.3,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string       // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SoftScore   float64      // 0-1 composite of soft signals (for logging)
}

// #endregion gate-decision
