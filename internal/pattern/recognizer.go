package pattern

import (
	"fmt"
	"sort"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/google/uuid"
)

// #region recognizer
// Recognizer is a bounded, TTL-evicted store of typed patterns. It is owned
// by a single entity and is not safe for concurrent use.
type Recognizer struct {
	config      RecognizerConfig
	clock       clock.Clock
	comparators map[Type]Comparator
	patterns    map[string]*Pattern
	byType      map[Type]map[string]struct{}
}

// NewRecognizer creates an empty recognizer using the default comparators.
func NewRecognizer(config RecognizerConfig, clk clock.Clock) *Recognizer {
	if config.Capacity <= 0 {
		config.Capacity = DefaultRecognizerConfig().Capacity
	}
	r := &Recognizer{
		config:      config,
		clock:       clock.Or(clk),
		comparators: DefaultComparators(),
		patterns:    make(map[string]*Pattern),
		byType:      make(map[Type]map[string]struct{}),
	}
	return r
}

// SetComparator replaces the similarity strategy for t.
func (r *Recognizer) SetComparator(t Type, c Comparator) {
	r.comparators[t] = c
}

// #endregion recognizer

// #region recognize
// Recognize matches input against stored patterns of the same type. The best
// match scoring at least ConfidenceThreshold is reinforced and returned.
// Otherwise a new pattern is created. When the store is full and nothing
// matches, the error wraps errtrack.ErrSaturation; callers treat it as non-fatal.
func (r *Recognizer) Recognize(input Input, ctx Context, t Type) (Match, error) {
	if !t.Valid() {
		return Match{}, errtrack.Validationf("recognize pattern", "unknown pattern type %q", t)
	}
	now := r.clock.Now()
	r.evict(now)

	compare := r.comparators[t]
	var best *Pattern
	bestScore := -1.0
	for id := range r.byType[t] {
		p := r.patterns[id]
		score := r.score(compare(input, p.Metadata), ctx)
		if score < r.config.ConfidenceThreshold {
			continue
		}
		// ties broken by id so map order never decides
		if score > bestScore || (score == bestScore && p.ID < best.ID) {
			best, bestScore = p, score
		}
	}

	if best != nil {
		best.Frequency++
		best.Confidence = min(1, best.Confidence+r.config.ReinforcementStep)
		best.Timestamp = now
		best.Context = mergeTags(best.Context, ctx.Tags)
		return Match{Pattern: best.clone(), Score: bestScore}, nil
	}

	if len(r.patterns) >= r.config.Capacity {
		return Match{}, errtrack.E(errtrack.ErrSaturation, "recognize pattern",
			fmt.Errorf("store holds %d patterns", len(r.patterns)))
	}

	p := &Pattern{
		ID:         uuid.New().String(),
		Type:       t,
		Confidence: 1,
		Frequency:  1,
		Timestamp:  now,
		Context:    mergeTags(nil, ctx.Tags),
		Metadata:   input.clone(),
	}
	r.insert(p)
	return Match{Pattern: p.clone(), Score: 1, Created: true}, nil
}

// score lifts raw similarity by the observation context, capped at 1.
func (r *Recognizer) score(similarity float64, ctx Context) float64 {
	s := similarity * (1 + clamp(ctx.QuantumCoherence)*0.2) * (1 + clamp(ctx.EmotionalAlignment)*0.1)
	return min(1, s)
}

// #endregion recognize

// #region queries
// ByType returns patterns of type t ordered by confidence, then recency.
func (r *Recognizer) ByType(t Type) []Pattern {
	r.evict(r.clock.Now())
	out := make([]Pattern, 0, len(r.byType[t]))
	for id := range r.byType[t] {
		out = append(out, r.patterns[id].clone())
	}
	sortByConfidence(out)
	return out
}

// Recent returns patterns touched within window, most recent first.
func (r *Recognizer) Recent(window time.Duration) []Pattern {
	now := r.clock.Now()
	r.evict(now)
	var out []Pattern
	for _, p := range r.patterns {
		if now.Sub(p.Timestamp) <= window {
			out = append(out, p.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Len returns the number of stored patterns.
func (r *Recognizer) Len() int {
	return len(r.patterns)
}

// All returns every stored pattern ordered by confidence, for persistence.
func (r *Recognizer) All() []Pattern {
	out := make([]Pattern, 0, len(r.patterns))
	for _, p := range r.patterns {
		out = append(out, p.clone())
	}
	sortByConfidence(out)
	return out
}

// Load replaces the store with ps. Invalid types are dropped and the result
// is trimmed to capacity, keeping the most confident patterns.
func (r *Recognizer) Load(ps []Pattern) {
	r.patterns = make(map[string]*Pattern, len(ps))
	r.byType = make(map[Type]map[string]struct{})
	sorted := append([]Pattern(nil), ps...)
	sortByConfidence(sorted)
	for _, p := range sorted {
		if len(r.patterns) >= r.config.Capacity {
			break
		}
		if !p.Type.Valid() || p.ID == "" {
			continue
		}
		cp := p.clone()
		cp.Confidence = clamp(cp.Confidence)
		r.insert(&cp)
	}
}

// Remove deletes a pattern by id.
func (r *Recognizer) Remove(id string) {
	p, ok := r.patterns[id]
	if !ok {
		return
	}
	delete(r.patterns, id)
	delete(r.byType[p.Type], id)
}

// #endregion queries

// #region helpers
func (r *Recognizer) insert(p *Pattern) {
	r.patterns[p.ID] = p
	if r.byType[p.Type] == nil {
		r.byType[p.Type] = make(map[string]struct{})
	}
	r.byType[p.Type][p.ID] = struct{}{}
}

// evict drops patterns unused for longer than TTL.
func (r *Recognizer) evict(now time.Time) {
	if r.config.TTL <= 0 {
		return
	}
	for id, p := range r.patterns {
		if now.Sub(p.Timestamp) > r.config.TTL {
			r.Remove(id)
		}
	}
}

func sortByConfidence(ps []Pattern) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Confidence != ps[j].Confidence {
			return ps[i].Confidence > ps[j].Confidence
		}
		if !ps[i].Timestamp.Equal(ps[j].Timestamp) {
			return ps[i].Timestamp.After(ps[j].Timestamp)
		}
		return ps[i].ID < ps[j].ID
	})
}

func mergeTags(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// #endregion helpers
