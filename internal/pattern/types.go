package pattern

import (
	"time"
)

// #region pattern-type
// Type selects the similarity strategy used for a pattern.
type Type string

const (
	TypeBehavioral  Type = "behavioral"
	TypeEmotional   Type = "emotional"
	TypeQuantum     Type = "quantum"
	TypeInteraction Type = "interaction"
	TypeMedia       Type = "media"
)

// Types lists every known pattern type.
var Types = []Type{TypeBehavioral, TypeEmotional, TypeQuantum, TypeInteraction, TypeMedia}

// Valid reports whether t is a known pattern type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// #endregion pattern-type

// #region signatures
// QuantumSignature is the comparable part of a quantum snapshot.
type QuantumSignature struct {
	Coherence float64   `json:"coherence"`
	Phase     float64   `json:"phase"`
	Layers    []float64 `json:"layers"` // per-layer coherence
}

// EmotionalSignature is the comparable part of an emotional state.
type EmotionalSignature struct {
	Dominant  string  `json:"dominant"`
	Intensity float64 `json:"intensity"`
	Stability float64 `json:"stability"`
}

// InteractionSignature summarises one interaction.
type InteractionSignature struct {
	Engagement      float64 `json:"engagement"`
	ResponseQuality float64 `json:"response_quality"`
	Coherence       float64 `json:"coherence"`
}

// MediaSignature summarises a media exposure.
type MediaSignature struct {
	Kind      string  `json:"kind"`
	Quality   float64 `json:"quality"`
	Resonance float64 `json:"resonance"`
}

// Input is what gets recognised. Only the signature matching the requested
// Type is consulted; the rest may be nil.
type Input struct {
	Quantum     *QuantumSignature     `json:"quantum,omitempty"`
	Emotional   *EmotionalSignature   `json:"emotional,omitempty"`
	Interaction *InteractionSignature `json:"interaction,omitempty"`
	Media       *MediaSignature       `json:"media,omitempty"`
	Behavior    map[string]float64    `json:"behavior,omitempty"` // named features in [0, 1]
}

// #endregion signatures

// #region context
// Context is the situation a pattern was observed in. Tags are merged into
// the stored pattern on reinforcement.
type Context struct {
	QuantumCoherence   float64
	EmotionalAlignment float64
	Tags               map[string]string
}

// #endregion context

// #region pattern
// Pattern is one stored recurring input.
type Pattern struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	Confidence float64           `json:"confidence"`
	Frequency  int               `json:"frequency"`
	Timestamp  time.Time         `json:"timestamp"`
	Context    map[string]string `json:"context,omitempty"`
	Metadata   Input             `json:"metadata"`
}

func (p Pattern) clone() Pattern {
	out := p
	if p.Context != nil {
		out.Context = make(map[string]string, len(p.Context))
		for k, v := range p.Context {
			out.Context[k] = v
		}
	}
	out.Metadata = p.Metadata.clone()
	return out
}

func (in Input) clone() Input {
	out := in
	if in.Quantum != nil {
		q := *in.Quantum
		q.Layers = append([]float64(nil), in.Quantum.Layers...)
		out.Quantum = &q
	}
	if in.Emotional != nil {
		e := *in.Emotional
		out.Emotional = &e
	}
	if in.Interaction != nil {
		i := *in.Interaction
		out.Interaction = &i
	}
	if in.Media != nil {
		m := *in.Media
		out.Media = &m
	}
	if in.Behavior != nil {
		out.Behavior = make(map[string]float64, len(in.Behavior))
		for k, v := range in.Behavior {
			out.Behavior[k] = v
		}
	}
	return out
}

// Match is the outcome of a successful Recognize call.
type Match struct {
	Pattern Pattern
	Score   float64 // 1.0 for a newly created pattern
	Created bool
}

// #endregion pattern

// #region recognizer-config
// RecognizerConfig bounds the pattern store.
type RecognizerConfig struct {
	Capacity            int           // max stored patterns (default 1000)
	TTL                 time.Duration // unused patterns older than this are evicted (default 7 days)
	ConfidenceThreshold float64       // min score for a match (default 0.7)
	ReinforcementStep   float64       // confidence gained per reinforcement (default 0.05)
}

// DefaultRecognizerConfig returns sensible defaults.
func DefaultRecognizerConfig() RecognizerConfig {
	return RecognizerConfig{
		Capacity:            1000,
		TTL:                 7 * 24 * time.Hour,
		ConfidenceThreshold: 0.7,
		ReinforcementStep:   0.05,
	}
}

// #endregion recognizer-config
