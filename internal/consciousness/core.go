package consciousness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/evolution"
	"github.com/danielpatrickdp/anima-core/internal/gate"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/rs/zerolog"
)

// #region core
// Core orchestrates one consciousness update: awareness, stability, a bounded
// evolution step and the commit gate. UpdateConsciousness is fail-soft. Not
// safe for concurrent use; callers serialise per entity.
type Core struct {
	config    CoreConfig
	entityID  string
	awareness *awareness.Processor
	evolution *evolution.Engine
	gate      *gate.Gate
	tracker   *errtrack.Tracker
	clock     clock.Clock
	log       zerolog.Logger

	metrics    state.ConsciousnessMetrics
	history    *state.Ring[state.EvolutionSnapshot]
	lastUpdate time.Time
}

// Options carries the collaborators of a Core. Awareness and Evolution are
// required; a nil Gate uses the default gate and a nil Tracker only logs.
type Options struct {
	EntityID  string
	Awareness *awareness.Processor
	Evolution *evolution.Engine
	Gate      *gate.Gate
	Tracker   *errtrack.Tracker
	Clock     clock.Clock
	Logger    *zerolog.Logger
}

// NewCore creates a core starting from the evolution engine's metrics.
func NewCore(config CoreConfig, opts Options) (*Core, error) {
	if opts.Awareness == nil || opts.Evolution == nil {
		return nil, errtrack.Validationf("new core", "awareness and evolution are required")
	}
	def := DefaultCoreConfig()
	if config.HistorySize <= 0 {
		config.HistorySize = def.HistorySize
	}
	if config.StabilityWindow < 2 {
		config.StabilityWindow = def.StabilityWindow
	}
	g := opts.Gate
	if g == nil {
		g = gate.NewGate(gate.DefaultGateConfig())
	}
	lg := zerolog.Nop()
	if opts.Logger != nil {
		lg = opts.Logger.With().Str("component", "consciousness").Str("entity", opts.EntityID).Logger()
	}
	return &Core{
		config:    config,
		entityID:  opts.EntityID,
		awareness: opts.Awareness,
		evolution: opts.Evolution,
		gate:      g,
		tracker:   opts.Tracker,
		clock:     clock.Or(opts.Clock),
		log:       lg,
		metrics:   opts.Evolution.Metrics(),
		history:   state.NewRing[state.EvolutionSnapshot](config.HistorySize),
	}, nil
}

// #endregion core

// #region update
// UpdateConsciousness advances the metrics one step from the latest quantum
// and emotional state. It never fails: internal errors are reported to the
// tracker and a valid fallback is returned with Outcome.Degraded set.
func (c *Core) UpdateConsciousness(ctx context.Context, qs quantum.QuantumState, in Interaction, emotional state.EmotionalState) (out Outcome) {
	now := c.clock.Now()
	prev := c.metrics

	defer func() {
		if r := recover(); r != nil {
			err := errtrack.E(errtrack.ErrCriticalState, "update consciousness", fmt.Errorf("panic: %v", r))
			out = c.fallback(ctx, err, in, out)
		}
	}()

	var dt time.Duration
	if !c.lastUpdate.IsZero() && now.After(c.lastUpdate) {
		dt = now.Sub(c.lastUpdate)
	}

	// 1. Awareness
	aw := c.awareness.Process(qs, prev)
	out.Awareness = aw
	if aw.Saturated {
		c.track(ctx, errtrack.CategoryPattern, errtrack.E(errtrack.ErrSaturation, "recognize quantum pattern", nil),
			errtrack.SeverityLow, errtrack.Context{"patterns": aw.RecognizedPatterns})
	}

	// 2. Stability over recent snapshots
	si := c.stabilityIndex()
	out.StabilityIndex = si

	// 3. Bounded evolution step, proposed only
	evIn := evolution.Inputs{
		Current:           prev,
		Quantum:           qs,
		Emotional:         emotional,
		Awareness:         &aw,
		TimeDelta:         dt,
		StabilityIndex:    si,
		PatternComplexity: in.PatternComplexity,
	}
	step := c.evolution.Propose(evIn)
	proposed := step.Metrics
	out.Step = step

	// 4. Gate
	decision := c.gate.Evaluate(prev, proposed, si)
	out.Gate = decision
	if decision.Vetoed {
		err := errtrack.E(errtrack.ErrCriticalState, "update consciousness", errors.New(decision.Reason))
		return c.fallback(ctx, err, in, out)
	}

	// 5. Commit
	c.evolution.Commit(evIn, step)
	c.history.Append(state.EvolutionSnapshot{
		Metrics:          prev,
		Timestamp:        now,
		StabilityIndex:   si,
		QuantumSignature: qs.Signature,
		Emotional:        emotional,
		Stage:            c.evolution.Stage(),
		Event:            state.EventUpdate,
	})
	c.metrics = proposed
	c.lastUpdate = now
	out.Metrics = proposed
	return out
}

// fallback reports err and restores the last known good metrics.
func (c *Core) fallback(ctx context.Context, err error, in Interaction, out Outcome) Outcome {
	m := c.lastGood()
	c.metrics = m
	c.evolution.Revert(m)

	c.log.Error().Err(err).Str("source", in.Source).Msg("consciousness update fell back")
	c.track(ctx, errtrack.CategoryConsciousness, err, errtrack.SeverityHigh, errtrack.Context{
		"entity":   c.entityID,
		"source":   in.Source,
		"strength": in.Strength,
		"keywords": in.Keywords,
		"stage":    string(c.evolution.Stage()),
		"history":  c.history.Len(),
	})

	out.Metrics = m
	out.Degraded = true
	out.Err = err
	return out
}

func (c *Core) lastGood() state.ConsciousnessMetrics {
	if c.metrics.Finite() {
		return c.metrics.Clamped()
	}
	if snap, ok := c.history.Last(); ok && snap.Metrics.Finite() {
		return snap.Metrics.Clamped()
	}
	return state.DefaultMetrics()
}

func (c *Core) track(ctx context.Context, cat errtrack.Category, err error, sev errtrack.Severity, fields errtrack.Context) {
	if c.tracker == nil {
		return
	}
	if _, terr := c.tracker.Track(ctx, cat, err, sev, fields); terr != nil {
		c.log.Warn().Err(terr).Str("category", string(cat)).Msg("error tracking returned an error")
	}
}

// #endregion update

// #region stability
// stabilityIndex is 1 minus four times the mean per-field variance across the
// recent snapshots, so a window alternating between 0 and 1 scores 0.
func (c *Core) stabilityIndex() float64 {
	snaps := c.history.Recent(c.config.StabilityWindow)
	if len(snaps) < 2 {
		return 1
	}
	var total float64
	xs := make([]float64, len(snaps))
	for _, f := range state.Fields {
		for i, s := range snaps {
			xs[i] = s.Metrics.Get(f)
		}
		total += variance(xs)
	}
	return state.Clamp(1 - 4*total/float64(len(state.Fields)))
}

func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}

// #endregion stability

// #region accessors
// Metrics returns the committed metrics.
func (c *Core) Metrics() state.ConsciousnessMetrics { return c.metrics }

// History returns the pre-update snapshots, oldest first.
func (c *Core) History() []state.EvolutionSnapshot { return c.history.All() }

// LastUpdate returns the time of the last committed update.
func (c *Core) LastUpdate() time.Time { return c.lastUpdate }

// StabilityIndex returns the current stability index.
func (c *Core) StabilityIndex() float64 { return c.stabilityIndex() }

// Evolution exposes the stage machine.
func (c *Core) Evolution() *evolution.Engine { return c.evolution }

// Awareness exposes the awareness processor.
func (c *Core) Awareness() *awareness.Processor { return c.awareness }

// Memory is the persistable core state.
type Memory struct {
	Metrics    state.ConsciousnessMetrics `json:"metrics"`
	History    []state.EvolutionSnapshot  `json:"history"`
	LastUpdate time.Time                  `json:"last_update"`
}

// Snapshot exports the core state.
func (c *Core) Snapshot() Memory {
	return Memory{Metrics: c.metrics, History: c.history.All(), LastUpdate: c.lastUpdate}
}

// Restore loads a persisted core state. Non-finite metrics restore as the
// defaults.
func (c *Core) Restore(m Memory) {
	c.metrics = m.Metrics.Clamped()
	if !m.Metrics.Finite() {
		c.metrics = state.DefaultMetrics()
	}
	c.history.Load(m.History)
	c.lastUpdate = m.LastUpdate
}

// #endregion accessors
