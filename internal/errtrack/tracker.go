package errtrack

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// #region config
// TrackerConfig holds per-category log bounds and recovery limits.
type TrackerConfig struct {
	LogCapacity int // max records kept per category (default 100)
	Recovery    RecoveryConfig
}

// DefaultTrackerConfig returns sensible defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		LogCapacity: 100,
		Recovery:    DefaultRecoveryConfig(),
	}
}

// #endregion config

// #region tracker
// Tracker records errors per category, fans them out to subscribers and the
// sink, and runs bounded recovery for critical errors.
type Tracker struct {
	mu         sync.Mutex
	config     TrackerConfig
	clock      clock.Clock
	log        zerolog.Logger
	sink       Sink
	policy     *RecoveryPolicy
	logs       map[Category][]Record
	subs       map[int]Subscriber
	nextSub    int
	actions    map[Category]RecoveryAction
	onEscalate EscalationHandler
	escalated  map[Category]bool
}

// Options carries optional tracker collaborators.
type Options struct {
	Clock      clock.Clock
	Logger     *zerolog.Logger
	Sink       Sink
	OnEscalate EscalationHandler
}

// NewTracker creates a tracker. Zero-valued options fall back to the system
// clock, a no-op logger and no sink.
func NewTracker(config TrackerConfig, opts Options) *Tracker {
	if config.LogCapacity <= 0 {
		config.LogCapacity = DefaultTrackerConfig().LogCapacity
	}
	lg := zerolog.Nop()
	if opts.Logger != nil {
		lg = opts.Logger.With().Str("component", "errtrack").Logger()
	}
	return &Tracker{
		config:     config,
		clock:      clock.Or(opts.Clock),
		log:        lg,
		sink:       opts.Sink,
		policy:     NewRecoveryPolicy(config.Recovery),
		logs:       make(map[Category][]Record),
		subs:       make(map[int]Subscriber),
		actions:    make(map[Category]RecoveryAction),
		onEscalate: opts.OnEscalate,
		escalated:  make(map[Category]bool),
	}
}

// #endregion tracker

// #region registration
// RegisterRecovery installs the recovery action for category.
func (t *Tracker) RegisterRecovery(category Category, action RecoveryAction) {
	t.mu.Lock()
	t.actions[category] = action
	t.mu.Unlock()
}

// OnEscalate replaces the escalation handler.
func (t *Tracker) OnEscalate(h EscalationHandler) {
	t.mu.Lock()
	t.onEscalate = h
	t.mu.Unlock()
}

// Subscribe registers fn for every tracked error and returns an unsubscribe func.
func (t *Tracker) Subscribe(fn Subscriber) func() {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// #endregion registration

// #region track
// Track records err under category and returns its id. For critical errors it
// runs the category's recovery action under the recovery policy; once the
// policy escalates, Track returns an error wrapping ErrRecoveryExhausted.
func (t *Tracker) Track(ctx context.Context, category Category, err error, severity Severity, fields Context) (string, error) {
	rec := Record{
		ID:        uuid.New().String(),
		Category:  category,
		Severity:  severity,
		Err:       err,
		Context:   fields,
		Timestamp: t.clock.Now(),
	}
	if err != nil {
		rec.Message = err.Error()
	}

	t.mu.Lock()
	entries := append(t.logs[category], rec)
	if len(entries) > t.config.LogCapacity {
		entries = entries[len(entries)-t.config.LogCapacity:]
	}
	t.logs[category] = entries
	subs := make([]Subscriber, 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	sink := t.sink
	t.mu.Unlock()

	t.log.WithLevel(levelFor(severity)).
		Str("error_id", rec.ID).
		Str("category", string(category)).
		Str("severity", severity.String()).
		Interface("context", fields).
		Msg(rec.Message)

	for _, s := range subs {
		t.notify(s, rec)
	}
	if sink != nil {
		if werr := sink.Write(ctx, rec); werr != nil {
			t.log.Warn().Err(werr).Str("error_id", rec.ID).Msg("error sink write failed")
		}
	}

	if severity != SeverityCritical {
		return rec.ID, nil
	}
	return rec.ID, t.runRecovery(ctx, rec)
}

func (t *Tracker) notify(s Subscriber, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Str("error_id", rec.ID).Msg("error subscriber panicked")
		}
	}()
	s(rec)
}

// #endregion track

// #region run-recovery
func (t *Tracker) runRecovery(ctx context.Context, rec Record) error {
	decision := t.policy.Decide(rec.Category, t.clock.Now())

	switch decision.Action {
	case ActionSkipInFlight:
		t.log.Debug().Str("category", string(rec.Category)).Msg("recovery already in flight, skipping")
		return nil

	case ActionEscalate:
		t.mu.Lock()
		first := !t.escalated[rec.Category]
		t.escalated[rec.Category] = true
		h := t.onEscalate
		t.mu.Unlock()
		t.log.Error().
			Str("category", string(rec.Category)).
			Int("max_attempts", t.config.Recovery.MaxAttempts).
			Msg("recovery attempts exhausted, escalating")
		if first && h != nil {
			h(rec.Category, rec)
		}
		return E(ErrRecoveryExhausted, "recover "+string(rec.Category), rec.Err)
	}

	defer t.policy.Finish(rec.Category)

	t.mu.Lock()
	action := t.actions[rec.Category]
	t.mu.Unlock()
	if action == nil {
		t.log.Debug().Str("category", string(rec.Category)).Msg("no recovery action registered")
		return nil
	}

	t.log.Warn().
		Str("category", string(rec.Category)).
		Int("attempt", decision.Attempt).
		Msg("attempting recovery")
	if err := action(ctx, rec); err != nil {
		t.log.Warn().Err(err).Str("category", string(rec.Category)).Int("attempt", decision.Attempt).Msg("recovery failed")
	}
	return nil
}

// #endregion recover

// #region queries
// Records returns a copy of the records for category, oldest first.
func (t *Tracker) Records(category Category) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.logs[category]))
	copy(out, t.logs[category])
	return out
}

// All returns every record across categories ordered by timestamp.
func (t *Tracker) All() []Record {
	t.mu.Lock()
	var out []Record
	for _, recs := range t.logs {
		out = append(out, recs...)
	}
	t.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Clear drops the records for category, or all records when category is empty.
func (t *Tracker) Clear(category Category) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if category == "" {
		t.logs = make(map[Category][]Record)
		return
	}
	delete(t.logs, category)
}

// Escalated reports whether category has been escalated.
func (t *Tracker) Escalated(category Category) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.escalated[category]
}

// ResetEscalation clears escalation and recovery windows for category.
func (t *Tracker) ResetEscalation(category Category) {
	t.mu.Lock()
	delete(t.escalated, category)
	t.mu.Unlock()
	t.policy.Reset(category)
}

// Attempts returns the recovery attempts used in the current window.
func (t *Tracker) Attempts(category Category) int {
	return t.policy.Attempts(category)
}

// Summary renders per-category counts, for CLI output.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cats := make([]string, 0, len(t.logs))
	for c := range t.logs {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	s := ""
	for _, c := range cats {
		s += fmt.Sprintf("%s=%d ", c, len(t.logs[Category(c)]))
	}
	return s
}

// #endregion queries

// #region helpers
func levelFor(s Severity) zerolog.Level {
	switch s {
	case SeverityLow:
		return zerolog.DebugLevel
	case SeverityMedium:
		return zerolog.InfoLevel
	case SeverityHigh:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// #endregion helpers
