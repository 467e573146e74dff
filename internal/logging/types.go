package logging

import (
	"time"

	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region logging-config
// LoggingConfig selects the level and format of the process logger.
type LoggingConfig struct {
	Level  string // zerolog level name; empty means info
	Pretty bool   // console writer instead of JSON
}

// DefaultLoggingConfig returns sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info"}
}

// #endregion logging-config

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	VersionID   string // persisted version, empty when nothing was saved
	EntityID    string
	TriggerType string // "interact" | "tick" | "force_stage" | "restore"
	SignalsJSON string
	Decision    string // "commit" | "reject" | "no_op" | "skip"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region update-record
// UpdateRecord captures the complete inputs and outcome of one pipeline run.
// Serialized as JSON into provenance_log.signals_json for replay and audit.
type UpdateRecord struct {
	EntityID string `json:"entity_id"`
	Trigger  string `json:"trigger"`

	// Interaction as produced by signals
	Strength float64  `json:"strength"`
	Keywords []string `json:"keywords,omitempty"`
	Valence  float64  `json:"valence"`

	// Metrics before and after
	Before state.ConsciousnessMetrics `json:"before"`
	After  state.ConsciousnessMetrics `json:"after"`

	// Step telemetry
	DeltaNorm      float64  `json:"delta_norm"`
	FieldsHit      []string `json:"fields_hit,omitempty"`
	StabilityIndex float64  `json:"stability_index"`
	Stage          string   `json:"stage"`
	QuantumStatus  string   `json:"quantum_status"`

	// Gate thresholds active at decision time
	Thresholds UpdateThresholds `json:"thresholds"`

	// Gate output
	GateAction    string  `json:"gate_action"`
	GateSoftScore float64 `json:"gate_soft_score"`
	GateVetoed    bool    `json:"gate_vetoed"`
	GateReason    string  `json:"gate_reason"`
	Degraded      bool    `json:"degraded"`
}

// UpdateThresholds captures the gate config active at decision time.
type UpdateThresholds struct {
	MaxDelta     float64 `json:"max_delta"`
	MaxDeltaNorm float64 `json:"max_delta_norm"`
}

// #endregion update-record
