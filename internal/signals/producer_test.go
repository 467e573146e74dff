package signals

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/danielpatrickdp/anima-core/internal/errtrack"
)

// #region strength-tests

func TestStrength_ExplicitValue(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1", Text: "hello there", Strength: 0.8})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if math.Abs(in.Strength-0.8) > 1e-9 {
		t.Errorf("expected explicit strength 0.8, got %f", in.Strength)
	}
}

func TestStrength_HighDiversity(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1", Text: "the quick brown fox jumps over lazy dog"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if in.Strength != 1 {
		t.Errorf("expected strength 1 for all-unique text, got %f", in.Strength)
	}
}

func TestStrength_LowDiversity(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1", Text: "the the the the the the the the"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if in.Strength > 0.2 {
		t.Errorf("expected low strength for repetitive text, got %f", in.Strength)
	}
}

func TestStrength_RiskDamps(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1", Strength: 0.8, Risk: 1})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if math.Abs(in.Strength-0.4) > 1e-9 {
		t.Errorf("expected 0.8 * (1 - 0.5) = 0.4, got %f", in.Strength)
	}
}

func TestStrength_DefaultWhenEmpty(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if in.Strength != 0.5 {
		t.Errorf("expected default strength 0.5, got %f", in.Strength)
	}
}

// #endregion strength-tests

// #region keyword-tests

func TestKeywords_FromTextAndHints(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{
		EntityID: "e1",
		Text:     "I feel joyful, and a little curious!",
		Keywords: []string{"Calm", "joy"},
	})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	want := []string{"calm", "joy", "curious"}
	if strings.Join(in.Keywords, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, in.Keywords)
	}
}

func TestKeywords_UnknownIgnored(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1", Text: "nothing special here", Keywords: []string{"boredom"}})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if len(in.Keywords) != 0 {
		t.Errorf("expected no keywords, got %v", in.Keywords)
	}
	if in.Valence != 0 {
		t.Errorf("expected neutral valence, got %f", in.Valence)
	}
}

func TestValence_Mixed(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	in, err := p.Produce(Event{EntityID: "e1", Text: "love and fear and calm"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	// (1 - 1 + 0.5) / 3
	if math.Abs(in.Valence-0.5/3) > 1e-9 {
		t.Errorf("expected valence %f, got %f", 0.5/3, in.Valence)
	}
}

// #endregion keyword-tests

// #region validation-tests

func TestValidate_MissingEntity(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	_, err := p.Produce(Event{Text: "hi"})
	if !errors.Is(err, errtrack.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "entityid is required") {
		t.Errorf("expected field message, got %q", err.Error())
	}
}

func TestValidate_StrengthOutOfRange(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	_, err := p.Produce(Event{EntityID: "e1", Strength: 1.5})
	if !errors.Is(err, errtrack.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidate_TextTooLong(t *testing.T) {
	cfg := DefaultProducerConfig()
	cfg.MaxTextLength = 10
	p := NewProducer(cfg)
	_, err := p.Produce(Event{EntityID: "e1", Text: strings.Repeat("a", 11)})
	if !errors.Is(err, errtrack.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// #endregion validation-tests
