package pattern

import "math"

// #region comparators
// Comparator scores how alike two inputs are, in [0, 1].
type Comparator func(a, b Input) float64

// DefaultComparators returns one similarity strategy per pattern type.
func DefaultComparators() map[Type]Comparator {
	return map[Type]Comparator{
		TypeBehavioral:  BehavioralSimilarity,
		TypeEmotional:   EmotionalSimilarity,
		TypeQuantum:     QuantumSimilarity,
		TypeInteraction: InteractionSimilarity,
		TypeMedia:       MediaSimilarity,
	}
}

// BehavioralSimilarity averages 1-|Δ| over the union of behaviour features.
// A feature missing on one side counts as 0.
func BehavioralSimilarity(a, b Input) float64 {
	if len(a.Behavior) == 0 || len(b.Behavior) == 0 {
		return 0
	}
	keys := make(map[string]struct{}, len(a.Behavior)+len(b.Behavior))
	for k := range a.Behavior {
		keys[k] = struct{}{}
	}
	for k := range b.Behavior {
		keys[k] = struct{}{}
	}
	var sum float64
	for k := range keys {
		sum += 1 - math.Abs(clamp(a.Behavior[k])-clamp(b.Behavior[k]))
	}
	return clamp(sum / float64(len(keys)))
}

// EmotionalSimilarity weighs dominant-emotion equality, intensity and stability.
func EmotionalSimilarity(a, b Input) float64 {
	if a.Emotional == nil || b.Emotional == nil {
		return 0
	}
	dominant := 0.0
	if a.Emotional.Dominant == b.Emotional.Dominant {
		dominant = 1
	}
	intensity := 1 - math.Abs(a.Emotional.Intensity-b.Emotional.Intensity)
	stability := 1 - math.Abs(a.Emotional.Stability-b.Emotional.Stability)
	return clamp(dominant*0.5 + intensity*0.3 + stability*0.2)
}

// QuantumSimilarity weighs coherence, angular phase distance and per-layer coherence.
func QuantumSimilarity(a, b Input) float64 {
	if a.Quantum == nil || b.Quantum == nil {
		return 0
	}
	coherence := 1 - math.Abs(a.Quantum.Coherence-b.Quantum.Coherence)
	phase := 1 - phaseDistance(a.Quantum.Phase, b.Quantum.Phase)/math.Pi
	return clamp(coherence*0.4 + phase*0.3 + layerMatch(a.Quantum.Layers, b.Quantum.Layers)*0.3)
}

// InteractionSimilarity weighs engagement, response quality and coherence.
func InteractionSimilarity(a, b Input) float64 {
	if a.Interaction == nil || b.Interaction == nil {
		return 0
	}
	engagement := 1 - math.Abs(a.Interaction.Engagement-b.Interaction.Engagement)
	response := 1 - math.Abs(a.Interaction.ResponseQuality-b.Interaction.ResponseQuality)
	coherence := 1 - math.Abs(a.Interaction.Coherence-b.Interaction.Coherence)
	return clamp(engagement*0.4 + response*0.3 + coherence*0.3)
}

// MediaSimilarity weighs media kind equality, quality and resonance.
func MediaSimilarity(a, b Input) float64 {
	if a.Media == nil || b.Media == nil {
		return 0
	}
	kind := 0.0
	if a.Media.Kind == b.Media.Kind {
		kind = 1
	}
	quality := 1 - math.Abs(a.Media.Quality-b.Media.Quality)
	resonance := 1 - math.Abs(a.Media.Resonance-b.Media.Resonance)
	return clamp(kind*0.4 + quality*0.3 + resonance*0.3)
}

// #endregion comparators

// #region helpers
// phaseDistance is the angular distance between two phases, in [0, π].
func phaseDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// layerMatch averages 1-|Δ| over the shorter of the two layer lists.
func layerMatch(a, b []float64) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		if len(a) == len(b) {
			return 1
		}
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += 1 - math.Abs(a[i]-b[i])
	}
	return sum / float64(n)
}

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
