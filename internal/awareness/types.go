package awareness

import "time"

// #region temporal-pattern
// TemporalPattern is one windowed observation of the quantum field.
type TemporalPattern struct {
	Timestamp            time.Time `json:"timestamp"`
	Signature            string    `json:"signature"`
	QuantumPhase         float64   `json:"quantum_phase"`
	Coherence            float64   `json:"coherence"`
	Stability            float64   `json:"stability"`
	DimensionalAlignment float64   `json:"dimensional_alignment"`
	Layers               []float64 `json:"layers"` // per-layer resonance
}

// #endregion temporal-pattern

// #region result
// Result is what one Process call derives.
type Result struct {
	PatternRecognitionRate   float64
	TemporalAwareness        float64
	EnvironmentalSensitivity float64
	QuantumAlignment         float64
	Overall                  float64 // blended awareness in [0, 1]

	Significant              bool    // latest observation is notably coherent or aligned
	Anomaly                  bool    // a recent observation fell below the anomaly floor
	TransitionStability      float64 // 1 - mean change between consecutive observations
	TransitionPredictability float64 // 1 - 2 * mean coherence change, floored at 0

	PatternID          string // quantum pattern recognised for this observation, if any
	RecognizedPatterns int    // stored patterns after recognition
	Saturated          bool   // the pattern store was full and nothing matched
}

// #endregion result

// #region snapshot
// Snapshot is the persistable processor state.
type Snapshot struct {
	Window                   []TemporalPattern `json:"window"`
	PatternRecognitionRate   float64           `json:"pattern_recognition_rate"`
	TemporalAwareness        float64           `json:"temporal_awareness"`
	EnvironmentalSensitivity float64           `json:"environmental_sensitivity"`
	QuantumAlignment         float64           `json:"quantum_alignment"`
}

// #endregion snapshot

// #region processor-config
// ProcessorConfig holds window and smoothing parameters.
type ProcessorConfig struct {
	WindowSize       int           // sliding window capacity (default 100)
	SimilarityWindow int           // entries compared for recognition rate (default 10)
	Smoothing        float64       // weight of the new instantaneous value (default 0.3)
	OptimalInterval  time.Duration // observation spacing scored as ideal (default 1s)
	AnomalyFloor     float64       // coherence/stability below this is anomalous (default 0.2)
	AnomalyWindow    int           // recent entries checked for anomalies (default 5)
}

// DefaultProcessorConfig returns sensible defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		WindowSize:       100,
		SimilarityWindow: 10,
		Smoothing:        0.3,
		OptimalInterval:  time.Second,
		AnomalyFloor:     0.2,
		AnomalyWindow:    5,
	}
}

// #endregion processor-config
