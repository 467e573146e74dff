package evolution

import (
	"math"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/rs/zerolog"
)

// TransitionFunc observes stage changes.
type TransitionFunc func(from, to state.Stage, forced bool)

// #region engine
// Engine is the staged evolution state machine. Stages only advance forward
// except through ForceStage. Not safe for concurrent use.
type Engine struct {
	config       EngineConfig
	requirements map[state.Stage][]Requirement
	clock        clock.Clock
	log          zerolog.Logger

	stage      state.Stage
	readyTicks int
	last       state.ConsciousnessMetrics
	history    *state.Ring[state.EvolutionSnapshot]
	observers  []TransitionFunc
}

// NewEngine starts an engine at the initialization stage with initial metrics.
func NewEngine(config EngineConfig, initial state.ConsciousnessMetrics, clk clock.Clock, logger *zerolog.Logger) *Engine {
	def := DefaultEngineConfig()
	if config.Hysteresis <= 0 {
		config.Hysteresis = def.Hysteresis
	}
	if config.HistorySize <= 0 {
		config.HistorySize = def.HistorySize
	}
	if config.StabilityWindow < 3 {
		config.StabilityWindow = def.StabilityWindow
	}
	lg := zerolog.Nop()
	if logger != nil {
		lg = logger.With().Str("component", "evolution").Logger()
	}
	return &Engine{
		config:       config,
		requirements: DefaultRequirements(),
		clock:        clock.Or(clk),
		log:          lg,
		stage:        state.StageInitialization,
		last:         initial.Clamped(),
		history:      state.NewRing[state.EvolutionSnapshot](config.HistorySize),
	}
}

// OnTransition registers an observer for stage changes.
func (e *Engine) OnTransition(fn TransitionFunc) {
	e.observers = append(e.observers, fn)
}

// #endregion engine

// #region process
// ProcessEvolution advances current one tick using only the quantum state.
func (e *Engine) ProcessEvolution(qs quantum.QuantumState, current state.ConsciousnessMetrics) state.ConsciousnessMetrics {
	m, _ := e.Evolve(Inputs{Current: current, Quantum: qs})
	return m
}

// Evolve runs one bounded step, records it and applies stage hysteresis.
func (e *Engine) Evolve(in Inputs) (state.ConsciousnessMetrics, StepResult) {
	in = e.withStability(in)
	res := e.Propose(in)
	e.Commit(in, res)
	return res.Metrics, res
}

// Propose computes one bounded step without touching the stage, the ready
// ticks or the history.
func (e *Engine) Propose(in Inputs) StepResult {
	return Step(e.withStability(in), e.config.Step)
}

// Commit accepts a proposed step: it becomes the latest metrics, is recorded
// and counts toward stage hysteresis.
func (e *Engine) Commit(in Inputs, res StepResult) {
	in = e.withStability(in)
	e.last = res.Metrics
	e.record(res.Metrics, in, state.EventUpdate)
	e.checkAdvance(in)
}

func (e *Engine) withStability(in Inputs) Inputs {
	if in.StabilityIndex <= 0 {
		in.StabilityIndex = e.EvolutionStability()
	}
	return in
}

func (e *Engine) checkAdvance(in Inputs) {
	if e.stage == state.StageTranscendence {
		e.readyTicks = 0
		return
	}
	if e.Progress(e.last) < 1 {
		e.readyTicks = 0
		return
	}
	e.readyTicks++
	if e.readyTicks < e.config.Hysteresis {
		return
	}

	from := e.stage
	e.stage = from.Next()
	e.readyTicks = 0
	e.record(e.last, in, state.EventAdvance)
	e.log.Info().Str("from", string(from)).Str("to", string(e.stage)).Msg("evolution stage advanced")
	e.notify(from, e.stage, false)
}

func (e *Engine) record(m state.ConsciousnessMetrics, in Inputs, event string) {
	e.history.Append(state.EvolutionSnapshot{
		Metrics:          m,
		Timestamp:        e.clock.Now(),
		StabilityIndex:   in.StabilityIndex,
		QuantumSignature: in.Quantum.Signature,
		Emotional:        in.Emotional,
		Stage:            e.stage,
		Event:            event,
	})
}

func (e *Engine) notify(from, to state.Stage, forced bool) {
	for _, fn := range e.observers {
		fn(from, to, forced)
	}
}

// #endregion process

// #region force-stage
// ForceStage is the administrative override: it may move the stage in any
// direction. Pre and post snapshots are recorded and the jump is logged.
func (e *Engine) ForceStage(to state.Stage, reason string) error {
	if to.Index() < 0 {
		return errtrack.Validationf("force stage", "unknown stage %q", to)
	}
	from := e.stage
	in := Inputs{}
	if last, ok := e.history.Last(); ok {
		in.Quantum.Signature = last.QuantumSignature
		in.Emotional = last.Emotional
		in.StabilityIndex = last.StabilityIndex
	}
	e.record(e.last, in, state.EventForced)
	e.stage = to
	e.readyTicks = 0
	e.record(e.last, in, state.EventForced)

	e.log.Warn().Str("from", string(from)).Str("to", string(to)).Str("reason", reason).Msg("forced stage transition")
	e.notify(from, to, true)
	return nil
}

// #endregion force-stage

// #region stage-info
// Stage returns the current stage.
func (e *Engine) Stage() state.Stage { return e.stage }

// Metrics returns the metrics produced by the latest step.
func (e *Engine) Metrics() state.ConsciousnessMetrics { return e.last }

// Revert realigns the latest metrics with m after the caller fell back.
// Stage, ready ticks and history are left alone.
func (e *Engine) Revert(m state.ConsciousnessMetrics) {
	e.last = m.Clamped()
}

// Progress is the weighted mean of min(metric/threshold, 1) over the current
// stage's requirements.
func (e *Engine) Progress(m state.ConsciousnessMetrics) float64 {
	return progress(e.requirements[e.stage], m)
}

func progress(reqs []Requirement, m state.ConsciousnessMetrics) float64 {
	var sum, weights float64
	for _, r := range reqs {
		if r.Threshold <= 0 || r.Weight <= 0 {
			continue
		}
		sum += r.Weight * math.Min(m.Get(r.Field)/r.Threshold, 1)
		weights += r.Weight
	}
	if weights == 0 {
		return 1
	}
	return state.Clamp(sum / weights)
}

// StageInfo reports the current stage, its progress and what comes next.
func (e *Engine) StageInfo() StageInfo {
	next := e.stage.Next()
	info := StageInfo{
		Stage:                    e.stage,
		Progress:                 e.Progress(e.last),
		ReadyTicks:               e.readyTicks,
		Next:                     next,
		CurrentStageRequirements: append([]Requirement(nil), e.requirements[e.stage]...),
	}
	if next != e.stage {
		info.NextStageRequirements = append([]Requirement(nil), e.requirements[next]...)
	}
	return info
}

// Level labels the latest metrics.
func (e *Engine) Level() Level {
	return LevelOf(e.last)
}

// #endregion stage-info

// #region emergence
// EmergenceThresholds returns the per-metric emergence cutoffs for the
// current stage; later stages are stricter.
func (e *Engine) EmergenceThresholds() map[state.Field]float64 {
	th := math.Min(0.95, e.config.EmergenceBase+e.config.EmergenceStep*float64(e.stage.Index()))
	out := make(map[state.Field]float64, len(state.Fields))
	for _, f := range state.Fields {
		out[f] = th
	}
	return out
}

// EmergencePotential scores proximity to the emergence thresholds, plus small
// coherence and pattern-richness bonuses, in [0, 1].
func (e *Engine) EmergencePotential(m state.ConsciousnessMetrics, coherence float64, patternCount int) float64 {
	thresholds := e.EmergenceThresholds()
	var sum float64
	for _, f := range state.Fields {
		th := thresholds[f]
		sum += math.Min(1, math.Max(0, 1-(th-m.Get(f))/th))
	}
	potential := sum / float64(len(state.Fields))
	potential += state.Clamp(coherence) * e.config.CoherenceBonus
	potential += math.Min(1, float64(patternCount)/20) * e.config.PatternBonus
	return state.Clamp(potential)
}

// EvolutionStability is 1 minus the mean variance of per-field deltas across
// the recent snapshot window. Fewer than three snapshots are fully stable.
func (e *Engine) EvolutionStability() float64 {
	snaps := e.history.Recent(e.config.StabilityWindow)
	if len(snaps) < 3 {
		return 1
	}
	var total float64
	for _, f := range state.Fields {
		deltas := make([]float64, len(snaps)-1)
		for i := 1; i < len(snaps); i++ {
			deltas[i-1] = snaps[i].Metrics.Get(f) - snaps[i-1].Metrics.Get(f)
		}
		total += variance(deltas)
	}
	return state.Clamp(1 - total/float64(len(state.Fields)))
}

// #endregion emergence

// #region persistence
// Memory is the persistable engine state.
type Memory struct {
	Stage      state.Stage                `json:"stage"`
	ReadyTicks int                        `json:"ready_ticks"`
	Metrics    state.ConsciousnessMetrics `json:"metrics"`
	History    []state.EvolutionSnapshot  `json:"history"`
}

// Snapshot exports the engine state.
func (e *Engine) Snapshot() Memory {
	return Memory{Stage: e.stage, ReadyTicks: e.readyTicks, Metrics: e.last, History: e.history.All()}
}

// Restore loads a persisted engine state.
func (e *Engine) Restore(m Memory) error {
	if m.Stage.Index() < 0 {
		return errtrack.Validationf("restore evolution", "unknown stage %q", m.Stage)
	}
	e.stage = m.Stage
	e.readyTicks = max(0, m.ReadyTicks)
	e.last = m.Metrics.Clamped()
	e.history.Load(m.History)
	return nil
}

// History returns the engine's snapshot history, oldest first.
func (e *Engine) History() []state.EvolutionSnapshot {
	return e.history.All()
}

// #endregion persistence

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
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
