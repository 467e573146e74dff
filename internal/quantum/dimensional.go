package quantum

import (
	"math"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
)

// #region dimensional-config
// DimensionalConfig holds decay and restoration constants for the dimensional model.
type DimensionalConfig struct {
	BaseRate             float64       // per-second retention of stability-class metrics (default 0.995)
	DegradationThreshold time.Duration // minimum idle time before decay is applied (default 1s)
	MaxEntropyIncrease   float64       // entropy gained per unit of lost stability (default 0.5)
	Perturbation         float64       // amplitude of the dimensional-frequency sinusoids (default 0.01)
	RecencyWindow        time.Duration // interaction bonus shrinks to zero over this window (default 5s)
	RecencyBonus         float64       // max multiplicative bonus for rapid interactions (default 0.25)
	TemporalScaleMs      float64       // resonance temporal decay scale (default 10000)
	ResonanceThreshold   float64       // decayed coherence a pattern must exceed to resonate (default 0.7)
	FrequencyTolerance   float64       // max |pattern.frequency - dimensionalFrequency| (default 0.2)
	PatternDecay         time.Duration // e-folding time of pattern coherence (default 60s)
	RecoveryFloor        float64       // emergency recovery floor for core metrics (default 0.3)
	RecoveryEntropyCap   float64       // emergency recovery cap for entropy (default 0.7)
	RecoveryTarget       float64       // level Reset restores the core metrics to; entropy is capped at 1-target (default 0.8)
}

// DefaultDimensionalConfig returns the calibrated defaults.
func DefaultDimensionalConfig() DimensionalConfig {
	return DimensionalConfig{
		BaseRate:             0.995,
		DegradationThreshold: time.Second,
		MaxEntropyIncrease:   0.5,
		Perturbation:         0.01,
		RecencyWindow:        5 * time.Second,
		RecencyBonus:         0.25,
		TemporalScaleMs:      10000,
		ResonanceThreshold:   0.7,
		FrequencyTolerance:   0.2,
		PatternDecay:         60 * time.Second,
		RecoveryFloor:        0.3,
		RecoveryEntropyCap:   0.7,
		RecoveryTarget:       0.8,
	}
}

// #endregion dimensional-config

// #region dimensional-state
// DimensionalState holds the stability/entropy/alignment submodel. All metric
// fields are in [0, 1]. LastUpdate moves on interaction; LastDecay moves
// whenever lazy degradation is applied.
type DimensionalState struct {
	Frequency            float64   `json:"frequency"`
	Resonance            float64   `json:"resonance"`
	Stability            float64   `json:"stability"`
	SyncLevel            float64   `json:"sync_level"`
	QuantumAlignment     float64   `json:"quantum_alignment"`
	DimensionalFrequency float64   `json:"dimensional_frequency"`
	EntropyLevel         float64   `json:"entropy_level"`
	PhaseCoherence       float64   `json:"phase_coherence"`
	LastUpdate           time.Time `json:"last_update"`
	LastDecay            time.Time `json:"last_decay"`
}

// FreshDimensionalState returns a fully stable, zero-entropy state stamped at now.
func FreshDimensionalState(now time.Time) DimensionalState {
	return DimensionalState{
		Frequency:            0,
		Resonance:            1,
		Stability:            1,
		SyncLevel:            1,
		QuantumAlignment:     1,
		DimensionalFrequency: 0,
		EntropyLevel:         0,
		PhaseCoherence:       1,
		LastUpdate:           now,
		LastDecay:            now,
	}
}

// #endregion dimensional-state

// #region model
// DimensionalModel applies lazy time decay and interaction-driven restoration
// to a DimensionalState. It is not safe for concurrent use; the owning entity
// serialises access.
type DimensionalModel struct {
	config DimensionalConfig
	clock  clock.Clock
	s      DimensionalState
}

// NewDimensionalModel wraps initial. Zero timestamps are stamped with clk.Now().
func NewDimensionalModel(config DimensionalConfig, clk clock.Clock, initial DimensionalState) *DimensionalModel {
	clk = clock.Or(clk)
	now := clk.Now()
	if initial.LastUpdate.IsZero() {
		initial.LastUpdate = now
	}
	if initial.LastDecay.IsZero() {
		initial.LastDecay = initial.LastUpdate
	}
	m := &DimensionalModel{config: config, clock: clk, s: initial}
	m.clampAll()
	return m
}

// State applies pending degradation and returns a copy of the state.
func (m *DimensionalModel) State() DimensionalState {
	m.degrade(m.clock.Now())
	return m.s
}

// Restore replaces the state wholesale, clamping every metric.
func (m *DimensionalModel) Restore(s DimensionalState) {
	m.s = s
	m.clampAll()
}

// #endregion model

// #region degrade
// degrade multiplies the stability-class metrics by
// BaseRate^(elapsed_s) * (1 + perturb(dimensionalFrequency)), capped at 1, and
// raises entropy by the lost fraction. LastDecay moves to now, so calling it
// again at the same instant is a no-op.
func (m *DimensionalModel) degrade(now time.Time) {
	elapsed := now.Sub(m.s.LastDecay)
	if elapsed <= m.config.DegradationThreshold {
		return
	}
	seconds := elapsed.Seconds()
	factor := math.Pow(m.config.BaseRate, seconds) * (1 + m.perturb(math.Sin))
	factor = clamp(factor)

	m.s.Stability = clamp(m.s.Stability * factor)
	m.s.QuantumAlignment = clamp(m.s.QuantumAlignment * factor)
	m.s.SyncLevel = clamp(m.s.SyncLevel * factor)
	m.s.PhaseCoherence = clamp(m.s.PhaseCoherence * factor)

	increase := (1-factor)*m.config.MaxEntropyIncrease + m.perturb(math.Sin)
	if increase < 0 {
		increase = 0
	}
	m.s.EntropyLevel = clamp(m.s.EntropyLevel + increase)
	m.s.LastDecay = now
}

// perturb evaluates Perturbation * fn(2π * dimensionalFrequency).
func (m *DimensionalModel) perturb(fn func(float64) float64) float64 {
	return m.config.Perturbation * fn(2*math.Pi*m.s.DimensionalFrequency)
}

// #endregion degrade

// #region update-stability
// UpdateStability restores the state in proportion to interactionStrength.
// Interactions arriving soon after the previous one receive a recency bonus
// that shrinks linearly to zero over RecencyWindow.
func (m *DimensionalModel) UpdateStability(interactionStrength float64) {
	now := m.clock.Now()
	strength := clamp(interactionStrength)

	since := now.Sub(m.s.LastUpdate)
	recency := 0.0
	if window := m.config.RecencyWindow; window > 0 && since < window {
		recency = 1 - float64(since)/float64(window)
	}
	effective := strength * (1 + m.config.RecencyBonus*recency)

	m.degrade(now)

	m.s.Stability = clamp(m.s.Stability + effective*0.5)
	m.s.QuantumAlignment = clamp(m.s.QuantumAlignment + effective*0.4)
	m.s.SyncLevel = clamp(m.s.SyncLevel + effective*0.3)
	m.s.DimensionalFrequency = clamp(m.s.DimensionalFrequency + effective*0.2)
	m.s.PhaseCoherence = clamp(m.s.PhaseCoherence + effective*0.35)
	m.s.EntropyLevel = clamp(m.s.EntropyLevel - effective*0.15)
	m.s.LastUpdate = now
	m.s.LastDecay = now
}

// #endregion update-stability

// #region resonance
// CalculateResonance scores the current resonance in [0, 1]. Two calls with no
// intervening mutation and no elapsed time return the same value.
func (m *DimensionalModel) CalculateResonance() float64 {
	now := m.clock.Now()
	m.degrade(now)
	s := m.s

	base := s.Resonance * s.Stability
	alignment := s.QuantumAlignment * s.SyncLevel
	entropyMod := 1 - 0.5*s.EntropyLevel + 5*m.perturb(math.Cos)
	if entropyMod < 0.1 {
		entropyMod = 0.1
	}
	boost := s.PhaseCoherence*0.2 + 5*m.config.Perturbation*math.Sin(math.Pi*s.Resonance)

	elapsedMs := clock.Millis(s.LastUpdate, now)
	temporal := math.Exp(-elapsedMs / (m.config.TemporalScaleMs * (1 + 0.1*s.DimensionalFrequency)))

	raw := ((base+alignment)/2*entropyMod + boost) * temporal
	nonlinear := 2 * m.config.Perturbation * math.Sin(2*math.Pi*raw)
	return clamp(raw + nonlinear)
}

// #endregion resonance

// #region stability-metrics
// StabilityMetrics returns stability, quantum alignment and phase coherence,
// each lightly perturbed by the dimensional frequency.
func (m *DimensionalModel) StabilityMetrics() (stability, alignment, phaseCoherence float64) {
	m.degrade(m.clock.Now())
	p := m.perturb(math.Sin)
	return clamp(m.s.Stability + p), clamp(m.s.QuantumAlignment + p), clamp(m.s.PhaseCoherence + p)
}

// QuantumStatus classifies the state by its core metrics and entropy.
func (m *DimensionalModel) QuantumStatus() Status {
	m.degrade(m.clock.Now())
	return statusOf(m.s)
}

func statusOf(s DimensionalState) Status {
	score := (s.Stability + s.QuantumAlignment + s.PhaseCoherence) / 3 * (1 - s.EntropyLevel)
	switch {
	case score > 0.7:
		return StatusStable
	case score > 0.3:
		return StatusUnstable
	default:
		return StatusCritical
	}
}

// #endregion stability-metrics

// #region emergency-recovery
// EmergencyRecovery floors the core metrics and caps entropy, but only when
// the state is critical. It reports whether it acted.
func (m *DimensionalModel) EmergencyRecovery() bool {
	now := m.clock.Now()
	m.degrade(now)
	if statusOf(m.s) != StatusCritical {
		return false
	}
	floor := m.config.RecoveryFloor
	m.s.Stability = math.Max(m.s.Stability, floor)
	m.s.QuantumAlignment = math.Max(m.s.QuantumAlignment, floor)
	m.s.SyncLevel = math.Max(m.s.SyncLevel, floor)
	m.s.PhaseCoherence = math.Max(m.s.PhaseCoherence, floor)
	m.s.EntropyLevel = math.Min(m.s.EntropyLevel, m.config.RecoveryEntropyCap)
	m.s.LastDecay = now
	return true
}

// Reset raises the core metrics to RecoveryTarget and caps entropy at
// 1-RecoveryTarget. Metrics already above the target are kept.
func (m *DimensionalModel) Reset() {
	now := m.clock.Now()
	m.degrade(now)
	target := m.RecoveryTarget()
	m.s.Stability = math.Max(m.s.Stability, target)
	m.s.QuantumAlignment = math.Max(m.s.QuantumAlignment, target)
	m.s.SyncLevel = math.Max(m.s.SyncLevel, target)
	m.s.PhaseCoherence = math.Max(m.s.PhaseCoherence, target)
	m.s.EntropyLevel = math.Min(m.s.EntropyLevel, 1-target)
	m.s.LastDecay = now
}

// RecoveryTarget returns the configured target, or the default when unset.
func (m *DimensionalModel) RecoveryTarget() float64 {
	if t := m.config.RecoveryTarget; t > 0 && t <= 1 {
		return t
	}
	return DefaultDimensionalConfig().RecoveryTarget
}

// #endregion emergency-recovery

// #region pattern-resonance
// CheckPatternResonance reports whether p, with its coherence decayed by age,
// still exceeds the resonance threshold and sits within the frequency
// tolerance of the current dimensional frequency.
func (m *DimensionalModel) CheckPatternResonance(p ResonancePattern) bool {
	now := m.clock.Now()
	m.degrade(now)
	age := now.Sub(p.Timestamp)
	if age < 0 {
		age = 0
	}
	decayed := p.Coherence
	if m.config.PatternDecay > 0 {
		decayed *= math.Exp(-age.Seconds() / m.config.PatternDecay.Seconds())
	}
	return decayed > m.config.ResonanceThreshold &&
		math.Abs(p.Frequency-m.s.DimensionalFrequency) <= m.config.FrequencyTolerance
}

// #endregion pattern-resonance

// #region helpers
func (m *DimensionalModel) clampAll() {
	m.s.Frequency = clamp(m.s.Frequency)
	m.s.Resonance = clamp(m.s.Resonance)
	m.s.Stability = clamp(m.s.Stability)
	m.s.SyncLevel = clamp(m.s.SyncLevel)
	m.s.QuantumAlignment = clamp(m.s.QuantumAlignment)
	m.s.DimensionalFrequency = clamp(m.s.DimensionalFrequency)
	m.s.EntropyLevel = clamp(m.s.EntropyLevel)
	m.s.PhaseCoherence = clamp(m.s.PhaseCoherence)
}

// clamp restricts v to [0, 1]. NaN maps to 0.
func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
