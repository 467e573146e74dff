package eval

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func healthyInput() Input {
	return Input{
		Metrics:   state.DefaultMetrics(),
		Emotional: state.NeutralEmotion(),
		Quantum: quantum.QuantumState{
			CoherenceLevel:    0.5,
			EntanglementIndex: 0.3,
			DimensionalSync:   0.5,
			Dimensional:       quantum.FreshDimensionalState(epoch),
		},
		HistoryLen: 10,
	}
}

func TestEvalPassesOnHealthyState(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(healthyInput())

	if !result.Passed {
		t.Fatalf("expected pass on healthy state, got fail: %s", result.Reason)
	}
	if len(result.Metrics) == 0 {
		t.Fatal("expected metrics")
	}
}

func TestEvalFailsOnMetricOutOfRange(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	in := healthyInput()
	in.Metrics.CognitiveComplexity = 1.5

	result := h.Run(in)

	if result.Passed {
		t.Fatal("expected fail on cognitive 1.5")
	}
	if !strings.Contains(result.Reason, "metrics.cognitive_complexity") {
		t.Errorf("reason should name the field, got %q", result.Reason)
	}
}

func TestEvalFailsOnNaN(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	in := healthyInput()
	in.Quantum.CoherenceLevel = math.NaN()

	result := h.Run(in)

	if result.Passed {
		t.Fatal("expected fail on NaN coherence")
	}
	if !strings.Contains(result.Reason, "not finite") {
		t.Errorf("expected non-finite reason, got %q", result.Reason)
	}
}

func TestEvalValenceAllowsNegative(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	in := healthyInput()
	in.Emotional.Valence = -0.8

	if result := h.Run(in); !result.Passed {
		t.Fatalf("negative valence is in range, got fail: %s", result.Reason)
	}

	in.Emotional.Valence = -1.2
	if result := h.Run(in); result.Passed {
		t.Fatal("expected fail on valence -1.2")
	}
}

func TestEvalFailsOnResonanceOverflow(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxResonancePatterns = 2
	h := NewEvalHarness(config)
	in := healthyInput()
	in.Quantum.ResonancePatterns = make([]quantum.ResonancePattern, 3)

	result := h.Run(in)

	if result.Passed {
		t.Fatal("expected fail on 3 patterns with bound 2")
	}
}

func TestEvalCountsMultipleFailures(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	in := healthyInput()
	in.Metrics.AwarenessLevel = -0.1
	in.HistoryLen = 500

	result := h.Run(in)

	if result.Passed {
		t.Fatal("expected fail")
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Errorf("expected 2 failures in reason, got %q", result.Reason)
	}
}

func TestCoherenceHealthIsInformational(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	in := healthyInput()
	in.Quantum.CoherenceLevel = 0.05

	result := h.Run(in)

	if !result.Passed {
		t.Fatalf("low coherence must not fail eval: %s", result.Reason)
	}
	found := false
	for _, m := range result.Metrics {
		if m.Name == "quantum.coherence_health" {
			found = true
			if m.Pass {
				t.Error("coherence health should be flagged")
			}
		}
	}
	if !found {
		t.Fatal("expected coherence_health metric")
	}
}
