package pattern

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func behavior(vals map[string]float64) Input {
	return Input{Behavior: vals}
}

func TestRecognize_ReinforcesNearIdenticalBehavior(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))

	first, err := r.Recognize(behavior(map[string]float64{"typing": 0.5, "pause": 0.2}), Context{}, TypeBehavioral)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Pattern.Frequency)
	assert.Equal(t, 1.0, first.Pattern.Confidence)

	second, err := r.Recognize(behavior(map[string]float64{"typing": 0.52, "pause": 0.21}), Context{}, TypeBehavioral)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Pattern.ID, second.Pattern.ID)
	assert.Equal(t, 2, second.Pattern.Frequency)
	assert.LessOrEqual(t, second.Pattern.Confidence, 1.0)
	assert.Equal(t, 1, r.Len())
}

func TestRecognize_DissimilarInputCreatesNewPattern(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))

	a, err := r.Recognize(behavior(map[string]float64{"typing": 0.9}), Context{}, TypeBehavioral)
	require.NoError(t, err)
	b, err := r.Recognize(behavior(map[string]float64{"typing": 0.0, "scroll": 1}), Context{}, TypeBehavioral)
	require.NoError(t, err)

	assert.NotEqual(t, a.Pattern.ID, b.Pattern.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRecognize_TypesDoNotCrossMatch(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))
	sig := &EmotionalSignature{Dominant: "content", Intensity: 0.5, Stability: 0.8}

	_, err := r.Recognize(Input{Emotional: sig}, Context{}, TypeEmotional)
	require.NoError(t, err)
	m, err := r.Recognize(Input{Emotional: sig}, Context{}, TypeMedia)
	require.NoError(t, err)
	assert.True(t, m.Created)
	assert.Len(t, r.ByType(TypeEmotional), 1)
	assert.Len(t, r.ByType(TypeMedia), 1)
}

func TestRecognize_UnknownType(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))
	_, err := r.Recognize(Input{}, Context{}, Type("smell"))
	assert.ErrorIs(t, err, errtrack.ErrValidation)
}

func TestRecognize_SaturationIsNonFatal(t *testing.T) {
	cfg := DefaultRecognizerConfig()
	cfg.Capacity = 2
	r := NewRecognizer(cfg, clock.NewManual(epoch))

	_, err := r.Recognize(behavior(map[string]float64{"a": 1}), Context{}, TypeBehavioral)
	require.NoError(t, err)
	_, err = r.Recognize(behavior(map[string]float64{"b": 1}), Context{}, TypeBehavioral)
	require.NoError(t, err)

	_, err = r.Recognize(behavior(map[string]float64{"c": 1}), Context{}, TypeBehavioral)
	assert.ErrorIs(t, err, errtrack.ErrSaturation)
	assert.Equal(t, 2, r.Len())

	// a matching input still reinforces when full
	m, err := r.Recognize(behavior(map[string]float64{"a": 1}), Context{}, TypeBehavioral)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Pattern.Frequency)
}

func TestRecognize_ConfidenceNeverExceedsOne(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))
	in := Input{Interaction: &InteractionSignature{Engagement: 0.6, ResponseQuality: 0.7, Coherence: 0.5}}

	var last Match
	for i := 0; i < 30; i++ {
		var err error
		last, err = r.Recognize(in, Context{QuantumCoherence: 1, EmotionalAlignment: 1}, TypeInteraction)
		require.NoError(t, err)
		assert.LessOrEqual(t, last.Pattern.Confidence, 1.0)
		assert.LessOrEqual(t, last.Score, 1.0)
	}
	assert.Equal(t, 30, last.Pattern.Frequency)
}

func TestRecognize_MergesContextTags(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))
	in := behavior(map[string]float64{"x": 0.4})

	_, err := r.Recognize(in, Context{Tags: map[string]string{"source": "chat"}}, TypeBehavioral)
	require.NoError(t, err)
	m, err := r.Recognize(in, Context{Tags: map[string]string{"mood": "calm"}}, TypeBehavioral)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"source": "chat", "mood": "calm"}, m.Pattern.Context)
}

func TestTTLEviction(t *testing.T) {
	clk := clock.NewManual(epoch)
	r := NewRecognizer(DefaultRecognizerConfig(), clk)

	_, err := r.Recognize(behavior(map[string]float64{"x": 0.4}), Context{}, TypeBehavioral)
	require.NoError(t, err)
	clk.Advance(8 * 24 * time.Hour)

	assert.Empty(t, r.ByType(TypeBehavioral))
	assert.Equal(t, 0, r.Len())
}

func TestRecent(t *testing.T) {
	clk := clock.NewManual(epoch)
	r := NewRecognizer(DefaultRecognizerConfig(), clk)

	old, _ := r.Recognize(behavior(map[string]float64{"x": 0}), Context{}, TypeBehavioral)
	clk.Advance(time.Hour)
	fresh, _ := r.Recognize(behavior(map[string]float64{"y": 1}), Context{}, TypeBehavioral)

	recent := r.Recent(10 * time.Minute)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.Pattern.ID, recent[0].ID)

	all := r.Recent(2 * time.Hour)
	require.Len(t, all, 2)
	assert.Equal(t, old.Pattern.ID, all[1].ID)
}

func TestReturnedPatternsAreCopies(t *testing.T) {
	r := NewRecognizer(DefaultRecognizerConfig(), clock.NewManual(epoch))
	m, err := r.Recognize(behavior(map[string]float64{"x": 0.4}), Context{Tags: map[string]string{"k": "v"}}, TypeBehavioral)
	require.NoError(t, err)

	m.Pattern.Context["k"] = "mutated"
	m.Pattern.Metadata.Behavior["x"] = 0.9

	stored := r.ByType(TypeBehavioral)[0]
	assert.Equal(t, "v", stored.Context["k"])
	assert.Equal(t, 0.4, stored.Metadata.Behavior["x"])
}

func TestLoad_TrimsToCapacity(t *testing.T) {
	cfg := DefaultRecognizerConfig()
	cfg.Capacity = 2
	r := NewRecognizer(cfg, clock.NewManual(epoch))

	r.Load([]Pattern{
		{ID: "a", Type: TypeQuantum, Confidence: 0.8, Timestamp: epoch},
		{ID: "b", Type: TypeQuantum, Confidence: 0.95, Timestamp: epoch},
		{ID: "c", Type: TypeQuantum, Confidence: 0.9, Timestamp: epoch},
		{ID: "d", Type: Type("bogus"), Confidence: 1, Timestamp: epoch},
	})
	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
}

func TestSimilarityStrategies(t *testing.T) {
	q := func(c, p float64, layers ...float64) Input {
		return Input{Quantum: &QuantumSignature{Coherence: c, Phase: p, Layers: layers}}
	}
	assert.InDelta(t, 1.0, QuantumSimilarity(q(0.5, 0.1, 0.3, 0.4), q(0.5, 0.1, 0.3, 0.4)), 1e-9)
	// phases 2π apart are identical
	assert.InDelta(t, 1.0, QuantumSimilarity(q(0.5, 0), q(0.5, 6.283185307179586)), 1e-9)
	assert.Less(t, QuantumSimilarity(q(0.9, 0, 1), q(0.1, 3.14, 0)), 0.2)

	m := func(kind string, qual float64) Input {
		return Input{Media: &MediaSignature{Kind: kind, Quality: qual, Resonance: 0.5}}
	}
	assert.Greater(t, MediaSimilarity(m("audio", 0.5), m("audio", 0.5)), MediaSimilarity(m("audio", 0.5), m("video", 0.5)))

	assert.Equal(t, 0.0, EmotionalSimilarity(Input{}, Input{}))
	assert.Equal(t, 0.0, BehavioralSimilarity(Input{}, behavior(map[string]float64{"x": 1})))
}
