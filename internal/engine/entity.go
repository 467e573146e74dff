package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/awareness"
	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/consciousness"
	"github.com/danielpatrickdp/anima-core/internal/emotion"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/eval"
	"github.com/danielpatrickdp/anima-core/internal/evolution"
	"github.com/danielpatrickdp/anima-core/internal/gate"
	"github.com/danielpatrickdp/anima-core/internal/logging"
	"github.com/danielpatrickdp/anima-core/internal/metrics"
	"github.com/danielpatrickdp/anima-core/internal/pattern"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/signals"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/rs/zerolog"
)

// Entity owns every component of one synthetic mind. All operations are
// serialized by a single mutex; Tick skips instead of waiting for it.
type Entity struct {
	mu sync.Mutex

	id      string
	config  Config
	store   *state.Store
	metrics *metrics.Collector
	clock   clock.Clock
	log     zerolog.Logger

	field      *quantum.Field
	recognizer *pattern.Recognizer
	awareness  *awareness.Processor
	emotion    *emotion.Processor
	evolution  *evolution.Engine
	core       *consciousness.Core
	tracker    *errtrack.Tracker
	producer   *signals.Producer
	eval       *eval.EvalHarness

	escalated   bool
	pending     error
	lastVersion string
}

// #region construct
// NewEntity wires the components for id. With a store, the entity resumes
// from its active version; otherwise the quantum field is initialised,
// falling back to local values if the gateway is unavailable.
func NewEntity(ctx context.Context, id string, config Config, deps Deps) (*Entity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errtrack.Validationf("new entity", "empty entity id")
	}
	clk := clock.Or(deps.Clock)
	base := logging.OrNop(deps.Logger)
	lg := base.With().Str("entity", id).Logger()

	rnd := deps.Rand
	if rnd == nil {
		rnd = entityRand(config.Seed, id)
	}

	e := &Entity{
		id:      id,
		config:  config,
		store:   deps.Store,
		metrics: deps.Metrics,
		clock:   clk,
		log:     lg,
	}

	e.field = quantum.NewField(id, config.Field, config.Dimensional, quantum.FieldOptions{
		Gateway: deps.Gateway,
		Rand:    rnd,
		Clock:   clk,
		Logger:  &lg,
	})
	e.recognizer = pattern.NewRecognizer(config.Pattern, clk)
	e.awareness = awareness.NewProcessor(config.Awareness, e.recognizer, clk)
	e.emotion = emotion.NewProcessor(config.Emotion, clk)
	e.evolution = evolution.NewEngine(config.Evolution, state.DefaultMetrics(), clk, &lg)
	e.evolution.OnTransition(func(from, to state.Stage, forced bool) {
		e.metrics.ObserveTransition(string(from), string(to), forced)
	})

	opts := errtrack.Options{Clock: clk, Logger: &lg, OnEscalate: e.onEscalate}
	if deps.Store != nil {
		opts.Sink = logging.NewSQLSink(deps.Store.DB(), id)
	}
	e.tracker = errtrack.NewTracker(config.Tracker, opts)
	e.tracker.Subscribe(func(rec errtrack.Record) {
		e.metrics.ObserveError(string(rec.Category), rec.Severity.String())
	})
	e.tracker.RegisterRecovery(errtrack.CategoryQuantum, e.recoverField)

	core, err := consciousness.NewCore(config.Core, consciousness.Options{
		EntityID:  id,
		Awareness: e.awareness,
		Evolution: e.evolution,
		Gate:      gate.NewGate(config.Gate),
		Tracker:   e.tracker,
		Clock:     clk,
		Logger:    &lg,
	})
	if err != nil {
		return nil, fmt.Errorf("new entity %s: %w", id, err)
	}
	e.core = core
	e.producer = signals.NewProducer(config.Signals)
	e.eval = eval.NewEvalHarness(config.Eval)

	if deps.Store != nil {
		raw, err := deps.Store.Load(id)
		switch {
		case err == nil:
			b, err := DecodeBlob(raw)
			if err != nil {
				return nil, fmt.Errorf("resume %s: %w", id, err)
			}
			if err := e.apply(b, "resume"); err != nil {
				return nil, fmt.Errorf("resume %s: %w", id, err)
			}
			e.log.Info().Str("stage", string(e.evolution.Stage())).Msg("entity resumed")
			return e, nil
		case !errors.Is(err, state.ErrNotFound):
			return nil, fmt.Errorf("resume %s: %w", id, err)
		}
	}

	if err := e.field.Initialize(ctx); err != nil {
		e.track(ctx, errtrack.CategoryNetwork, err, errtrack.SeverityMedium, errtrack.Context{"op": "initialize"})
	}
	e.log.Info().Msg("entity created")
	return e, nil
}

func entityRand(seed uint64, id string) quantum.Rand {
	if seed == 0 {
		return quantum.NewRand()
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return quantum.NewSeededRand(seed ^ h.Sum64())
}

// #endregion construct

// ID returns the entity id.
func (e *Entity) ID() string { return e.id }

// #region interact
// Interact runs one interaction through the pipeline. The returned error is
// non-nil only for invalid events, or once when recovery has been exhausted;
// the Report is valid in the latter case.
func (e *Entity) Interact(ctx context.Context, ev signals.Event) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	if ev.EntityID == "" {
		ev.EntityID = e.id
	}
	if ev.EntityID != e.id {
		return Report{}, errtrack.Validationf("interact", "event for %q delivered to %q", ev.EntityID, e.id)
	}
	in, err := e.producer.Produce(ev)
	if err != nil {
		return Report{}, err
	}

	rep := e.run(ctx, TriggerInteract, in)
	rep.Duration = time.Since(start)
	e.metrics.ObserveInteraction(rep.Duration)
	return rep, e.takePending()
}

// #endregion interact

// #region tick
// Tick advances the entity without an interaction. If another operation
// holds the entity, the tick is skipped rather than queued.
func (e *Entity) Tick(ctx context.Context) (Report, error) {
	if !e.mu.TryLock() {
		e.metrics.ObserveTick(0, true)
		e.log.Debug().Msg("tick skipped, entity busy")
		return Report{EntityID: e.id, Trigger: TriggerTick, Skipped: true}, nil
	}
	defer e.mu.Unlock()

	start := time.Now()
	e.field.Decay()
	rep := e.run(ctx, TriggerTick, signals.Interaction{})
	rep.Duration = time.Since(start)
	e.metrics.ObserveTick(rep.Duration, false)
	return rep, e.takePending()
}

// #endregion tick

// #region pipeline
func (e *Entity) run(ctx context.Context, trigger string, in signals.Interaction) Report {
	if e.escalated {
		rep := e.report(trigger)
		rep.Degraded = true
		return rep
	}
	before := e.core.Metrics()

	if in.Strength > 0 {
		e.field.ApplyInteraction(in.Strength)
	}
	status, err := e.field.Observe(ctx)
	if err != nil {
		e.track(ctx, errtrack.CategoryNetwork, err, errtrack.SeverityMedium, errtrack.Context{"op": "observe", "trigger": trigger})
	}
	if status == quantum.StatusCritical {
		e.track(ctx, errtrack.CategoryQuantum,
			errtrack.E(errtrack.ErrCriticalState, "observe field", fmt.Errorf("quantum status %s", status)),
			errtrack.SeverityCritical,
			errtrack.Context{"trigger": trigger, "strength": in.Strength})
		if e.escalated {
			rep := e.report(trigger)
			rep.Degraded = true
			rep.VersionID = e.persist(ctx, logging.UpdateRecord{
				Trigger: trigger, Strength: in.Strength, Keywords: in.Keywords, Valence: in.Valence,
				Before: before, After: before, QuantumStatus: string(quantum.StatusCritical),
				Stage: string(rep.Stage), GateAction: "reject", GateReason: "recovery exhausted", Degraded: true,
			})
			return rep
		}
	}
	qs := e.field.Snapshot()

	if trigger == TriggerInteract {
		e.recognize(ctx, pattern.TypeInteraction, pattern.Input{Interaction: &pattern.InteractionSignature{
			Engagement:      in.Strength,
			ResponseQuality: (in.Valence + 1) / 2,
			Coherence:       qs.CoherenceLevel,
		}}, qs, before)
	}

	emo := e.emotion.Process(qs, before, in.Keywords)
	e.recognize(ctx, pattern.TypeEmotional, pattern.Input{Emotional: &pattern.EmotionalSignature{
		Dominant:  string(emo.Dominant),
		Intensity: emo.Intensity,
		Stability: emo.Stability,
	}}, qs, before)

	out := e.core.UpdateConsciousness(ctx, qs, consciousness.Interaction{
		Strength:          in.Strength,
		Keywords:          in.Keywords,
		PatternComplexity: e.field.PatternComplexity(),
		Source:            trigger,
	}, emo)

	res := e.eval.Run(eval.Input{
		Metrics:    out.Metrics,
		Emotional:  emo,
		Quantum:    qs,
		HistoryLen: len(e.evolution.History()),
	})
	if !res.Passed {
		e.metrics.ObserveEvalFailure()
		e.log.Error().Str("reason", res.Reason).Msg("post-update eval failed")
		e.track(ctx, errtrack.CategoryState, errtrack.E(errtrack.ErrCriticalState, "eval", errors.New(res.Reason)),
			errtrack.SeverityMedium, errtrack.Context{"trigger": trigger})
	}

	rep := e.report(trigger)
	rep.Emotional = emo
	rep.Degraded = out.Degraded
	rep.EvalPassed = res.Passed

	fields := make([]string, 0, len(out.Step.Telemetry.FieldsHit))
	for _, f := range out.Step.Telemetry.FieldsHit {
		fields = append(fields, string(f))
	}
	rep.VersionID = e.persist(ctx, logging.UpdateRecord{
		Trigger:        trigger,
		Strength:       in.Strength,
		Keywords:       in.Keywords,
		Valence:        in.Valence,
		Before:         before,
		After:          out.Metrics,
		DeltaNorm:      out.Step.Telemetry.DeltaNorm,
		FieldsHit:      fields,
		StabilityIndex: out.StabilityIndex,
		Stage:          string(rep.Stage),
		QuantumStatus:  string(rep.Status),
		Thresholds: logging.UpdateThresholds{
			MaxDelta:     e.config.Gate.MaxDelta,
			MaxDeltaNorm: e.config.Gate.MaxDeltaNorm,
		},
		GateAction:    out.Gate.Action,
		GateSoftScore: out.Gate.SoftScore,
		GateVetoed:    out.Gate.Vetoed,
		GateReason:    out.Gate.Reason,
		Degraded:      out.Degraded,
	})
	return rep
}

func (e *Entity) recognize(ctx context.Context, t pattern.Type, input pattern.Input, qs quantum.QuantumState, m state.ConsciousnessMetrics) {
	_, err := e.recognizer.Recognize(input, pattern.Context{
		QuantumCoherence:   qs.CoherenceLevel,
		EmotionalAlignment: m.EmotionalResonance,
	}, t)
	if err != nil {
		sev := errtrack.SeverityMedium
		if errors.Is(err, errtrack.ErrSaturation) {
			sev = errtrack.SeverityLow
		}
		e.track(ctx, errtrack.CategoryPattern, err, sev, errtrack.Context{"type": string(t)})
	}
}

func (e *Entity) report(trigger string) Report {
	m := e.core.Metrics()
	coherence := e.field.Snapshot().CoherenceLevel
	status := e.field.Status()
	if e.escalated {
		status = quantum.StatusCritical
	}
	patterns := e.recognizer.Len()
	stage := e.evolution.Stage()
	e.metrics.SetEntity(e.id, stage.Index(), m.AwarenessLevel, statusIndex(status))
	return Report{
		EntityID:   e.id,
		Trigger:    trigger,
		Metrics:    m,
		Emotional:  e.emotion.Current(),
		Stage:      stage,
		Level:      evolution.LevelOf(m),
		Status:     status,
		Progress:   e.evolution.Progress(m),
		Emergence:  e.evolution.EmergencePotential(m, coherence, patterns),
		Coherence:  coherence,
		Patterns:   patterns,
		Degraded:   e.escalated,
		EvalPassed: true,
	}
}

func statusIndex(s quantum.Status) int {
	switch s {
	case quantum.StatusStable:
		return 0
	case quantum.StatusUnstable:
		return 1
	default:
		return 2
	}
}

// #endregion pipeline

// #region persistence
// persist saves a version and its provenance row. Failures are tracked and
// never abort the operation.
func (e *Entity) persist(ctx context.Context, rec logging.UpdateRecord) string {
	if e.store == nil || !e.config.Persist {
		return ""
	}
	raw, err := EncodeBlob(e.snapshot())
	if err != nil {
		e.track(ctx, errtrack.CategoryState, err, errtrack.SeverityHigh, errtrack.Context{"op": "encode"})
		return ""
	}
	vid, err := e.store.Save(e.id, raw, rec.Trigger)
	if err != nil {
		e.track(ctx, errtrack.CategoryState, err, errtrack.SeverityHigh, errtrack.Context{"op": "save"})
		return ""
	}
	e.lastVersion = vid

	rec.EntityID = e.id
	if err := logging.LogUpdate(e.store.DB(), vid, rec, e.clock.Now()); err != nil {
		e.log.Warn().Err(err).Str("version", vid).Msg("provenance write failed")
	}
	return vid
}

func (e *Entity) snapshot() Blob {
	return Blob{
		Version:   BlobVersion,
		EntityID:  e.id,
		SavedAt:   e.clock.Now(),
		Quantum:   e.field.Snapshot(),
		Core:      e.core.Snapshot(),
		Evolution: e.evolution.Snapshot(),
		Emotional: e.emotion.History(),
		Awareness: e.awareness.Snapshot(),
		Patterns:  e.recognizer.All(),
		Escalated: e.escalated,
	}
}

// apply replaces every component's state with b. The evolution memory is
// validated first so a bad blob leaves the entity untouched. Loading an
// earlier stage goes through ForceStage so the regression is recorded.
func (e *Entity) apply(b Blob, reason string) error {
	if b.EntityID != e.id {
		return errtrack.Validationf("apply blob", "blob for %q applied to %q", b.EntityID, e.id)
	}
	from := e.evolution.Stage()
	mem := b.Evolution
	backward := mem.Stage.Index() >= 0 && mem.Stage.Index() < from.Index()
	if backward {
		mem.Stage = from
	}
	if err := e.evolution.Restore(mem); err != nil {
		return err
	}
	e.field.Restore(b.Quantum)
	e.core.Restore(b.Core)
	e.emotion.Restore(b.Emotional)
	e.awareness.Restore(b.Awareness)
	e.recognizer.Load(b.Patterns)
	e.escalated = b.Escalated
	if !b.Escalated {
		e.tracker.ResetEscalation(errtrack.CategoryQuantum)
	}
	if backward {
		return e.evolution.ForceStage(b.Evolution.Stage, reason)
	}
	return nil
}

// Snapshot returns the encoded current state.
func (e *Entity) Snapshot() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EncodeBlob(e.snapshot())
}

// Restore replaces the entity's state with an encoded blob and records it as
// a new version.
func (e *Entity) Restore(ctx context.Context, raw []byte) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := DecodeBlob(raw)
	if err != nil {
		return Report{}, err
	}
	if err := e.apply(b, "restore"); err != nil {
		return Report{}, err
	}
	rep := e.report(TriggerRestore)
	m := e.core.Metrics()
	rep.VersionID = e.persist(ctx, logging.UpdateRecord{
		Trigger: TriggerRestore, Before: m, After: m,
		Stage: string(rep.Stage), QuantumStatus: string(rep.Status), GateAction: "restore",
	})
	return rep, nil
}

// Rollback makes versionID the active version and loads it.
func (e *Entity) Rollback(versionID string) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store == nil {
		return Report{}, errtrack.Validationf("rollback", "entity %s has no store", e.id)
	}
	rec, err := e.store.GetVersion(versionID)
	if err != nil {
		return Report{}, fmt.Errorf("rollback %s: %w", e.id, err)
	}
	b, err := DecodeBlob(rec.Blob)
	if err != nil {
		return Report{}, err
	}
	if err := e.apply(b, "rollback to "+versionID); err != nil {
		return Report{}, err
	}
	if err := e.store.Rollback(e.id, versionID); err != nil {
		return Report{}, fmt.Errorf("rollback %s: %w", e.id, err)
	}
	e.lastVersion = versionID
	if err := logging.LogDecision(e.store.DB(), logging.ProvenanceEntry{
		VersionID:   versionID,
		EntityID:    e.id,
		TriggerType: "rollback",
		Decision:    "rollback",
		CreatedAt:   e.clock.Now(),
	}); err != nil {
		e.log.Warn().Err(err).Msg("provenance write failed")
	}
	rep := e.report(TriggerRestore)
	rep.VersionID = versionID
	return rep, nil
}

// #endregion persistence

// #region control
// ForceStage moves the entity to stage regardless of requirements.
func (e *Entity) ForceStage(ctx context.Context, stage state.Stage, reason string) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.evolution.ForceStage(stage, reason); err != nil {
		return Report{}, err
	}
	rep := e.report(TriggerForceStage)
	m := e.core.Metrics()
	rep.VersionID = e.persist(ctx, logging.UpdateRecord{
		Trigger: TriggerForceStage, Before: m, After: m,
		Stage: string(stage), QuantumStatus: string(rep.Status),
		GateAction: "forced", GateReason: reason,
	})
	return rep, nil
}

// Recover clears an exhausted recovery and reinitialises the quantum field.
// It is the only way out of degraded mode.
func (e *Entity) Recover(ctx context.Context) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracker.ResetEscalation(errtrack.CategoryQuantum)
	e.escalated = false
	e.pending = nil
	err := e.field.Reinitialize(ctx)
	if err != nil {
		e.track(ctx, errtrack.CategoryNetwork, err, errtrack.SeverityMedium, errtrack.Context{"op": "recover"})
	}
	e.log.Info().Str("status", string(e.field.Status())).Msg("manual recovery")

	rep := e.report(TriggerRecover)
	m := e.core.Metrics()
	rep.VersionID = e.persist(ctx, logging.UpdateRecord{
		Trigger: TriggerRecover, Before: m, After: m,
		Stage: string(rep.Stage), QuantumStatus: string(rep.Status), GateAction: "recover",
	})
	return rep, err
}

// recoverField is the quantum recovery action. It runs inside Track, with
// the entity lock already held.
func (e *Entity) recoverField(ctx context.Context, rec errtrack.Record) error {
	err := e.field.Reinitialize(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	e.metrics.ObserveRecovery(string(rec.Category), outcome)
	return err
}

func (e *Entity) onEscalate(cat errtrack.Category, rec errtrack.Record) {
	e.escalated = true
	e.pending = errtrack.E(errtrack.ErrRecoveryExhausted, "entity "+e.id, rec.Err)
	e.metrics.ObserveRecovery(string(cat), "exhausted")
	e.log.Error().Str("category", string(cat)).Str("record", rec.ID).Msg("recovery exhausted, entering degraded mode")
}

func (e *Entity) takePending() error {
	err := e.pending
	e.pending = nil
	return err
}

func (e *Entity) track(ctx context.Context, cat errtrack.Category, err error, sev errtrack.Severity, fields errtrack.Context) {
	if fields == nil {
		fields = errtrack.Context{}
	}
	fields["entity"] = e.id
	if _, terr := e.tracker.Track(ctx, cat, err, sev, fields); terr != nil && !errors.Is(terr, errtrack.ErrRecoveryExhausted) {
		e.log.Warn().Err(terr).Str("category", string(cat)).Msg("recovery failed")
	}
}

// #endregion control

// #region accessors
// Report returns the current state without advancing it.
func (e *Entity) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report("status")
}

// StageInfo returns the evolution stage and its requirements.
func (e *Entity) StageInfo() evolution.StageInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evolution.StageInfo()
}

// History returns committed consciousness snapshots, oldest first.
func (e *Entity) History() []state.EvolutionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.core.History()
}

// Errors returns every tracked error record.
func (e *Entity) Errors() []errtrack.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.All()
}

// Patterns returns the recognised patterns, highest confidence first.
func (e *Entity) Patterns() []pattern.Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recognizer.All()
}

// ResonantPatterns returns the quantum field's resonance history.
func (e *Entity) ResonantPatterns() []quantum.ResonancePattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.field.ResonantPatterns()
}

// EmotionalTrends returns the share of each dominant emotion in history.
func (e *Entity) EmotionalTrends() map[state.Dominant]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emotion.Trends()
}

// Escalated reports whether the entity is in degraded mode.
func (e *Entity) Escalated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escalated
}

// LastVersion returns the id of the last version saved by this entity.
func (e *Entity) LastVersion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastVersion
}

// #endregion accessors
