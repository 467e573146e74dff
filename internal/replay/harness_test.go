package replay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/anima-core/internal/engine"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

func loadSession(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture(filepath.Join("testdata", "session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return f
}

// TestRun_Session is the regression baseline: every expectation in the
// recorded session must hold.
func TestRun_Session(t *testing.T) {
	f := loadSession(t)
	results, err := Run(context.Background(), f, engine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(f.Steps) {
		t.Fatalf("expected %d results, got %d", len(f.Steps), len(results))
	}
	for _, r := range results {
		if !r.Passed() {
			t.Errorf("step %d (%s): %v", r.Index, r.Kind, r.Failures)
		}
		if r.Err != "" {
			t.Errorf("step %d (%s): unexpected error %s", r.Index, r.Kind, r.Err)
		}
	}

	s := Summarize(results)
	if s.Steps != 8 || s.Interactions != 4 || s.Ticks != 3 || s.Forced != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.Failed != 0 || s.Errors != 0 {
		t.Errorf("expected a clean run: %+v", s)
	}
	if s.FinalStage != state.StageGrowth {
		t.Errorf("final stage = %s", s.FinalStage)
	}
}

func TestRun_Deterministic(t *testing.T) {
	f := loadSession(t)
	a, err := Run(context.Background(), f, engine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(context.Background(), f, engine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := range a {
		if a[i].Report.Metrics != b[i].Report.Metrics {
			t.Errorf("step %d: metrics diverged: %+v vs %+v", i, a[i].Report.Metrics, b[i].Report.Metrics)
		}
		if a[i].Report.Coherence != b[i].Report.Coherence {
			t.Errorf("step %d: coherence diverged", i)
		}
	}
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	degraded := true
	f := &Fixture{
		EntityID: "ada",
		Seed:     1,
		Steps: []Step{
			{Kind: KindTick, Expect: &Expect{Stage: "emergence", MinProgress: 2, Degraded: &degraded}},
		},
	}
	results, err := Run(context.Background(), f, engine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Passed() {
		t.Fatal("expected step to fail")
	}
	if n := len(results[0].Failures); n != 3 {
		t.Errorf("expected 3 failures, got %d: %v", n, results[0].Failures)
	}
	if s := Summarize(results); s.Failed != 1 {
		t.Errorf("summary failed = %d", s.Failed)
	}
}

func TestRun_InvalidEventIsRecorded(t *testing.T) {
	f := &Fixture{
		EntityID: "ada",
		Steps:    []Step{{Kind: KindInteract, Text: "hi", Strength: 3}},
	}
	results, err := Run(context.Background(), f, engine.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Err == "" {
		t.Error("expected validation error to be recorded")
	}
}

func TestRun_RejectsInvalidFixture(t *testing.T) {
	_, err := Run(context.Background(), &Fixture{}, engine.DefaultConfig(), nil)
	if err == nil {
		t.Fatal("expected error for fixture without entity id")
	}
}
