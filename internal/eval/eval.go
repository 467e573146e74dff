package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region eval-harness
// EvalHarness runs post-commit range validation over an entity's state.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Input is everything one validation pass inspects.
type Input struct {
	Metrics    state.ConsciousnessMetrics
	Emotional  state.EmotionalState
	Quantum    quantum.QuantumState
	HistoryLen int
}

// Run checks every documented range and collection bound. A failure means a
// bug upstream: all values are clamped before commit.
func (h *EvalHarness) Run(in Input) EvalResult {
	r := &run{}

	// 1. Consciousness metrics in [0, 1]
	for _, f := range state.Fields {
		r.unit("metrics."+string(f), in.Metrics.Get(f))
	}

	// 2. Emotional state
	r.unit("emotional.intensity", in.Emotional.Intensity)
	r.unit("emotional.stability", in.Emotional.Stability)
	r.unit("emotional.complexity", in.Emotional.Complexity)
	r.check("emotional.valence", in.Emotional.Valence, in.Emotional.Valence >= -1 && in.Emotional.Valence <= 1,
		"outside [-1, 1]")

	// 3. Quantum state
	qs := in.Quantum
	r.unit("quantum.coherence", qs.CoherenceLevel)
	r.unit("quantum.entanglement", qs.EntanglementIndex)
	r.unit("quantum.dimensional_sync", qs.DimensionalSync)
	r.unit("quantum.evolution_factor", qs.EvolutionFactor)
	d := qs.Dimensional
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"stability", d.Stability},
		{"sync_level", d.SyncLevel},
		{"quantum_alignment", d.QuantumAlignment},
		{"dimensional_frequency", d.DimensionalFrequency},
		{"entropy", d.EntropyLevel},
		{"phase_coherence", d.PhaseCoherence},
	} {
		r.unit("dimensional."+c.name, c.v)
	}

	// 4. Collection bounds
	n := float64(len(qs.ResonancePatterns))
	r.check("quantum.resonance_patterns", n, len(qs.ResonancePatterns) <= h.config.MaxResonancePatterns,
		fmt.Sprintf("exceeds %d", h.config.MaxResonancePatterns))
	r.check("history.len", float64(in.HistoryLen), in.HistoryLen <= h.config.MaxEvolutionHistory,
		fmt.Sprintf("exceeds %d", h.config.MaxEvolutionHistory))

	// 5. Coherence health: informational only, does not fail
	r.metrics = append(r.metrics, EvalMetric{
		Name:  "quantum.coherence_health",
		Value: qs.CoherenceLevel,
		Pass:  qs.CoherenceLevel >= h.config.MinHealthyCoherence,
	})

	reason := "all checks passed"
	if len(r.failures) == 1 {
		reason = fmt.Sprintf("eval failed: %s", r.failures[0])
	} else if len(r.failures) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(r.failures), r.failures[0])
	}

	return EvalResult{
		Passed:  len(r.failures) == 0,
		Metrics: r.metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
type run struct {
	metrics  []EvalMetric
	failures []string
}

func (r *run) check(name string, v float64, pass bool, why string) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		pass, why = false, "not finite"
	}
	r.metrics = append(r.metrics, EvalMetric{Name: name, Value: v, Pass: pass})
	if !pass {
		r.failures = append(r.failures, fmt.Sprintf("%s %.4f %s", name, v, why))
	}
}

func (r *run) unit(name string, v float64) {
	r.check(name, v, v >= 0 && v <= 1, "outside [0, 1]")
}

// #endregion helpers
