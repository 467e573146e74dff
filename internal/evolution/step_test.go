package evolution

import (
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

func highCoherence() quantum.QuantumState {
	return quantum.QuantumState{
		CoherenceLevel:    0.9,
		DimensionalSync:   0.8,
		TemporalStability: 0.8,
		Signature:         "sig",
		Dimensional:       quantum.DimensionalState{Resonance: 0.8},
	}
}

func TestStep_MovesTowardTarget(t *testing.T) {
	in := Inputs{Current: state.Uniform(0.1), Quantum: highCoherence()}
	res := Step(in, DefaultStepConfig())

	if res.Decision.Action != "commit" {
		t.Fatalf("expected commit, got %s", res.Decision.Action)
	}
	if res.Metrics.QuantumCoherence <= 0.1 {
		t.Fatalf("expected quantum coherence to grow, got %f", res.Metrics.QuantumCoherence)
	}
	if res.Telemetry.DeltaNorm <= 0 {
		t.Fatal("expected positive delta norm")
	}
}

func TestStep_DecaysTowardLowerTarget(t *testing.T) {
	qs := highCoherence()
	qs.CoherenceLevel = 0.1
	in := Inputs{Current: state.Uniform(0.9), Quantum: qs}
	res := Step(in, DefaultStepConfig())

	if res.Metrics.QuantumCoherence >= 0.9 {
		t.Fatalf("expected quantum coherence to fall, got %f", res.Metrics.QuantumCoherence)
	}
}

func TestStep_PerTickCap(t *testing.T) {
	cfg := DefaultStepConfig()
	cfg.BaseRate = 10 // would overshoot without the cap
	in := Inputs{Current: state.Uniform(0), Quantum: highCoherence()}
	res := Step(in, cfg)

	for _, fm := range res.Telemetry.FieldMetrics {
		if math.Abs(fm.Delta) > cfg.MaxDelta+1e-12 {
			t.Fatalf("%s delta %f exceeds cap", fm.Field, fm.Delta)
		}
	}
	for _, f := range state.Fields {
		if v := res.Metrics.Get(f); v < 0 || v > 1 {
			t.Fatalf("%s out of range: %f", f, v)
		}
	}
}

func TestStep_CoherenceScalesMagnitudeNotSign(t *testing.T) {
	low := highCoherence()
	low.CoherenceLevel = 0.0
	high := highCoherence()
	high.CoherenceLevel = 1.0

	aw := &awareness.Result{Overall: 0.8, PatternRecognitionRate: 0.8, TemporalAwareness: 0.8}
	slow := Step(Inputs{Current: state.Uniform(0.2), Quantum: low, Awareness: aw}, DefaultStepConfig())
	fast := Step(Inputs{Current: state.Uniform(0.2), Quantum: high, Awareness: aw}, DefaultStepConfig())

	if slow.Metrics.PatternRecognition <= 0.2 {
		t.Fatalf("low coherence must still grow toward target, got %f", slow.Metrics.PatternRecognition)
	}
	if fast.Metrics.PatternRecognition <= slow.Metrics.PatternRecognition {
		t.Fatalf("high coherence should evolve faster: %f <= %f",
			fast.Metrics.PatternRecognition, slow.Metrics.PatternRecognition)
	}
}

func TestStep_NoChangeAtTarget(t *testing.T) {
	in := Inputs{Current: state.Uniform(0.5), Quantum: highCoherence()}
	in.Current = Targets(in)
	res := Step(in, DefaultStepConfig())
	if res.Decision.Action != "no_op" {
		t.Fatalf("expected no_op, got %s (%s)", res.Decision.Action, res.Decision.Reason)
	}
}

func TestStep_TimeDeltaScaling(t *testing.T) {
	base := Inputs{Current: state.Uniform(0.1), Quantum: highCoherence()}
	short := base
	short.TimeDelta = 200 * time.Millisecond
	long := base
	long.TimeDelta = time.Minute

	s := Step(short, DefaultStepConfig()).Metrics.QuantumCoherence
	l := Step(long, DefaultStepConfig()).Metrics.QuantumCoherence
	if s >= l {
		t.Fatalf("short tick should move less: %f >= %f", s, l)
	}
}

func TestStep_PureFunction(t *testing.T) {
	in := Inputs{Current: state.Uniform(0.3), Quantum: highCoherence()}
	a := Step(in, DefaultStepConfig())
	b := Step(in, DefaultStepConfig())
	if a.Metrics != b.Metrics {
		t.Fatal("expected identical results for identical inputs")
	}
	if in.Current != state.Uniform(0.3) {
		t.Fatal("input metrics were mutated")
	}
}
