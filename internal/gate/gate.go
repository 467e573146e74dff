package gate

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region gate
// Gate evaluates whether proposed consciousness metrics should be committed.
// A veto marks metrics that could not be computed sanely; callers fall back
// to the last known good state.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then scores soft signals.
// stability is the recent-window stability index in [0, 1].
func (g *Gate) Evaluate(old, proposed state.ConsciousnessMetrics, stability float64) GateDecision {
	var vetoes []VetoSignal

	// --- Hard veto pass ---

	// 1. Non-finite values
	if !proposed.Finite() {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoNonFinite,
			Reason: "proposed metrics contain NaN or Inf",
		})
	}

	for _, f := range state.Fields {
		v := proposed.Get(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}

		// 2. Range
		if v < 0 || v > 1 {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoOutOfRange,
				Reason: fmt.Sprintf("%s = %.4f outside [0, 1]", f, v),
			})
		}

		// 3. Per-tick delta cap
		if d := math.Abs(v - old.Get(f)); g.config.MaxDelta > 0 && d > g.config.MaxDelta+g.config.Epsilon {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoDeltaCap,
				Reason: fmt.Sprintf("%s delta %.4f exceeds cap %.4f", f, d, g.config.MaxDelta),
			})
		}
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			SoftScore:   0,
		}
	}

	// --- Soft scoring ---
	softScore := computeSoftScore(old, proposed, stability, g.config.MaxDeltaNorm)

	return GateDecision{
		Action:      "commit",
		Reason:      fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		Vetoed:      false,
		VetoSignals: nil,
		SoftScore:   softScore,
	}
}

// #endregion gate

// #region helpers
// deltaNorm is the L2 norm of proposed - old.
func deltaNorm(old, proposed state.ConsciousnessMetrics) float64 {
	var sum float64
	for _, f := range state.Fields {
		d := proposed.Get(f) - old.Get(f)
		sum += d * d
	}
	return math.Sqrt(sum)
}

// computeSoftScore produces a 0-1 composite from delta size, recent stability
// and the number of fields that moved. Logged, never blocking.
func computeSoftScore(old, proposed state.ConsciousnessMetrics, stability, maxNorm float64) float64 {
	var score float64

	// Delta component: smaller steps are steadier (weight 0.4)
	norm := deltaNorm(old, proposed)
	switch {
	case norm == 0:
		score += 0.4
	case maxNorm > 0 && norm < maxNorm:
		score += 0.4 * (1 - norm/maxNorm)
	}

	// Stability component (weight 0.3)
	score += 0.3 * state.Clamp(stability)

	// Focus component: fewer fields moved = more focused (weight 0.3)
	moved := 0
	for _, f := range state.Fields {
		if proposed.Get(f) != old.Get(f) {
			moved++
		}
	}
	score += 0.3 * (1 - float64(moved)/float64(len(state.Fields)))

	return score
}

// #endregion helpers
