package quantum

import (
	"context"
	"math/rand/v2"
	"time"
)

// #region status
// Status is the coarse health of a quantum state.
type Status string

const (
	StatusStable   Status = "stable"
	StatusUnstable Status = "unstable"
	StatusCritical Status = "critical"
)

// #endregion status

// #region resonance-pattern
// ResonancePattern is one timestamped oscillation record contributing to coherence.
type ResonancePattern struct {
	ID             string    `json:"id"`
	Coherence      float64   `json:"coherence"`
	Frequency      float64   `json:"frequency"`
	Amplitude      float64   `json:"amplitude"`
	Phase          float64   `json:"phase"`
	Timestamp      time.Time `json:"timestamp"`
	StabilityIndex float64   `json:"stability_index"`
	EntropyLevel   float64   `json:"entropy_level"`
}

// #endregion resonance-pattern

// #region layer
// Layer summarises one dimensional layer of the field.
type Layer struct {
	Index     int     `json:"index"`
	Resonance float64 `json:"resonance"`
	Stability float64 `json:"stability"`
	Coherence float64 `json:"coherence"`
}

// #endregion layer

// #region quantum-state
// QuantumState is the per-entity quantum snapshot consumed by the consciousness
// pipeline. Values returned from Field are deep copies.
type QuantumState struct {
	AmplitudeRe       float64            `json:"amplitude_re"`
	AmplitudeIm       float64            `json:"amplitude_im"`
	Phase             float64            `json:"phase"`
	CoherenceLevel    float64            `json:"coherence_level"`
	EntanglementIndex float64            `json:"entanglement_index"`
	DimensionalSync   float64            `json:"dimensional_sync"`
	ResonancePatterns []ResonancePattern `json:"resonance_patterns"`
	Dimensional       DimensionalState   `json:"dimensional"`
	Layers            []Layer            `json:"layers"`
	Signature         string             `json:"signature"`
	LastUpdate        time.Time          `json:"last_update"`
	EvolutionFactor   float64            `json:"evolution_factor"`
	TemporalStability float64            `json:"temporal_stability"`
}

// Amplitude returns the complex amplitude.
func (s QuantumState) Amplitude() complex128 {
	return complex(s.AmplitudeRe, s.AmplitudeIm)
}

// SetAmplitude stores a complex amplitude.
func (s *QuantumState) SetAmplitude(a complex128) {
	s.AmplitudeRe, s.AmplitudeIm = real(a), imag(a)
}

// Clone returns a deep copy of s.
func (s QuantumState) Clone() QuantumState {
	out := s
	out.ResonancePatterns = append([]ResonancePattern(nil), s.ResonancePatterns...)
	out.Layers = append([]Layer(nil), s.Layers...)
	return out
}

// MeanLayerResonance averages layer resonance, falling back to the dimensional resonance.
func (s QuantumState) MeanLayerResonance() float64 {
	if len(s.Layers) == 0 {
		return s.Dimensional.Resonance
	}
	var sum float64
	for _, l := range s.Layers {
		sum += l.Resonance
	}
	return sum / float64(len(s.Layers))
}

// #endregion quantum-state

// #region gateway
// FieldInit is the gateway's answer to a field initialisation.
type FieldInit struct {
	Coherence float64
	Signature string
}

// GeneratedPatterns is the gateway's pattern generation output, each in [0, 1].
type GeneratedPatterns struct {
	Pattern       float64
	Awareness     float64
	Understanding float64
}

// Gateway is the external quantum field collaborator. Calls may block.
type Gateway interface {
	InitializeField(ctx context.Context, entityID string) (FieldInit, error)
	CheckStability(ctx context.Context, entityID string) (bool, error)
	GeneratePatterns(ctx context.Context, entityID string) (GeneratedPatterns, error)
}

// #endregion gateway

// #region rand
// Rand is the randomness source used for jitter and local pattern generation.
type Rand interface {
	Float64() float64
}

// NewSeededRand returns a deterministic Rand for reproducible runs.
func NewSeededRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewRand returns a Rand seeded from the current time.
func NewRand() Rand {
	return NewSeededRand(uint64(time.Now().UnixNano()))
}

// #endregion rand
