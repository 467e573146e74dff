package errtrack

import (
	"testing"
	"time"
)

func TestRecoveryPolicy_Decide(t *testing.T) {
	p := NewRecoveryPolicy(RecoveryConfig{MaxAttempts: 2, Cooldown: time.Second})
	now := time.Unix(100, 0)

	d := p.Decide(CategoryQuantum, now)
	if d.Action != ActionAttempt || d.Attempt != 1 {
		t.Fatalf("expected first attempt, got %+v", d)
	}
	if got := p.Decide(CategoryQuantum, now); got.Action != ActionSkipInFlight {
		t.Fatalf("expected skip while in flight, got %s", got.Action)
	}
	p.Finish(CategoryQuantum)

	if d := p.Decide(CategoryQuantum, now.Add(100*time.Millisecond)); d.Attempt != 2 {
		t.Fatalf("expected second attempt, got %+v", d)
	}
	p.Finish(CategoryQuantum)

	if d := p.Decide(CategoryQuantum, now.Add(200*time.Millisecond)); d.Action != ActionEscalate {
		t.Fatalf("expected escalate, got %s", d.Action)
	}

	// other categories are independent
	if d := p.Decide(CategoryState, now); d.Action != ActionAttempt {
		t.Fatalf("expected independent category to attempt, got %s", d.Action)
	}
}

func TestRecoveryPolicy_DefaultsOnZeroConfig(t *testing.T) {
	p := NewRecoveryPolicy(RecoveryConfig{})
	now := time.Unix(0, 0)
	for i := 0; i < DefaultRecoveryConfig().MaxAttempts; i++ {
		if d := p.Decide(CategoryQuantum, now); d.Action != ActionAttempt {
			t.Fatalf("attempt %d: expected attempt, got %s", i+1, d.Action)
		}
		p.Finish(CategoryQuantum)
	}
	if d := p.Decide(CategoryQuantum, now); d.Action != ActionEscalate {
		t.Fatalf("expected escalate, got %s", d.Action)
	}
}
