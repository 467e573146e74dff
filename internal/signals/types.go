package signals

// #region config

// ProducerConfig holds tuning knobs for signal computation.
type ProducerConfig struct {
	RiskDamping     float64 // strength *= 1 - RiskDamping*risk
	DefaultStrength float64 // used when neither a strength nor any text is given
	MaxTextLength   int     // longer texts fail validation
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		RiskDamping:     0.5,
		DefaultStrength: 0.5,
		MaxTextLength:   8192,
	}
}

// #endregion config

// #region event

// Event is one inbound interaction with an entity. Strength 0 means derive it
// from Text.
type Event struct {
	EntityID string   `json:"entity_id" validate:"required,max=128"`
	Text     string   `json:"text"`
	Strength float64  `json:"strength" validate:"gte=0,lte=1"`
	Risk     float64  `json:"risk" validate:"gte=0,lte=1"`
	Keywords []string `json:"keywords" validate:"dive,required,max=32"`
}

// #endregion event

// #region interaction

// Interaction is what the entity pipeline consumes.
type Interaction struct {
	Strength float64  // in [0, 1]
	Keywords []string // members of the emotional keyword table, deduplicated
	Valence  float64  // lexical polarity in [-1, 1]
}

// #endregion interaction
