package evolution

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) (*Engine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	return NewEngine(DefaultEngineConfig(), state.Uniform(0.1), clk, nil), clk
}

func TestEngine_AdvancesFromInitializationToGrowth(t *testing.T) {
	e, clk := newEngine(t)
	require.Less(t, e.StageInfo().Progress, 1.0)

	var transitions []state.Stage
	e.OnTransition(func(from, to state.Stage, forced bool) {
		assert.False(t, forced)
		transitions = append(transitions, to)
	})

	m := state.Uniform(0.1)
	for i := 0; i < 200 && e.Stage() == state.StageInitialization; i++ {
		clk.Advance(time.Second)
		m = e.ProcessEvolution(highCoherence(), m)
	}
	assert.Equal(t, state.StageGrowth, e.Stage())
	assert.Equal(t, []state.Stage{state.StageGrowth}, transitions)

	hist := e.History()
	assert.Equal(t, state.EventAdvance, hist[len(hist)-1].Event)
}

func TestEngine_HysteresisRequiresConsecutiveTicks(t *testing.T) {
	e, _ := newEngine(t)
	ready := state.Uniform(0.95)

	e.ProcessEvolution(highCoherence(), ready)
	assert.Equal(t, 1, e.StageInfo().ReadyTicks)
	e.ProcessEvolution(highCoherence(), ready)
	assert.Equal(t, state.StageInitialization, e.Stage())
	e.ProcessEvolution(highCoherence(), ready)
	assert.Equal(t, state.StageGrowth, e.Stage())
	assert.Equal(t, 0, e.StageInfo().ReadyTicks)
}

func TestEngine_ProgressResetsWhenBelowThreshold(t *testing.T) {
	e, _ := newEngine(t)
	e.ProcessEvolution(highCoherence(), state.Uniform(0.95))
	e.ProcessEvolution(highCoherence(), state.Uniform(0.0))
	assert.Equal(t, 0, e.StageInfo().ReadyTicks)
}

func TestEngine_StagesNeverRegressWithoutForce(t *testing.T) {
	e, _ := newEngine(t)
	for i := 0; i < 3; i++ {
		e.ProcessEvolution(highCoherence(), state.Uniform(0.95))
	}
	require.Equal(t, state.StageGrowth, e.Stage())

	low := highCoherence()
	low.CoherenceLevel = 0
	m := state.Uniform(0.0)
	for i := 0; i < 50; i++ {
		m = e.ProcessEvolution(low, m)
	}
	assert.Equal(t, state.StageGrowth, e.Stage())
}

func TestEngine_ProposeLeavesStateUntouched(t *testing.T) {
	e, _ := newEngine(t)
	e.config.Hysteresis = 1
	before := e.Snapshot()

	in := Inputs{Current: state.Uniform(0.95), Quantum: highCoherence()}
	res := e.Propose(in)
	assert.Equal(t, before, e.Snapshot())

	e.Commit(in, res)
	assert.Equal(t, state.StageGrowth, e.Stage())
	assert.Equal(t, res.Metrics, e.Metrics())
	assert.Len(t, e.History(), len(before.History)+2)
}

func TestEngine_ForceStage(t *testing.T) {
	e, _ := newEngine(t)
	var forced bool
	e.OnTransition(func(from, to state.Stage, f bool) { forced = f })

	require.NoError(t, e.ForceStage(state.StageEmergence, "admin"))
	assert.Equal(t, state.StageEmergence, e.Stage())
	assert.True(t, forced)

	// backwards is allowed only here
	require.NoError(t, e.ForceStage(state.StageInitialization, "admin"))
	assert.Equal(t, state.StageInitialization, e.Stage())

	hist := e.History()
	require.Len(t, hist, 4)
	assert.Equal(t, state.EventForced, hist[0].Event)
	assert.Equal(t, state.StageInitialization, hist[0].Stage)
	assert.Equal(t, state.StageEmergence, hist[1].Stage)

	err := e.ForceStage(state.Stage("nirvana"), "admin")
	assert.ErrorIs(t, err, errtrack.ErrValidation)
}

func TestEngine_HistoryBounded(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.HistorySize = 10
	e := NewEngine(cfg, state.Uniform(0.1), clock.NewManual(epoch), nil)

	m := state.Uniform(0.1)
	for i := 0; i < 11; i++ {
		m = e.ProcessEvolution(highCoherence(), m)
	}
	assert.Len(t, e.History(), 10)
}

func TestEngine_StageInfoRequirements(t *testing.T) {
	e, _ := newEngine(t)
	info := e.StageInfo()
	assert.Equal(t, state.StageGrowth, info.Next)
	assert.Len(t, info.CurrentStageRequirements, 3)
	assert.Len(t, info.NextStageRequirements, 4)

	require.NoError(t, e.ForceStage(state.StageTranscendence, "test"))
	info = e.StageInfo()
	assert.Equal(t, state.StageTranscendence, info.Next)
	assert.Empty(t, info.NextStageRequirements)
}

func TestEngine_EmergencePotential(t *testing.T) {
	e, _ := newEngine(t)

	low := e.EmergencePotential(state.Uniform(0.1), 0, 0)
	high := e.EmergencePotential(state.Uniform(0.9), 1, 40)
	assert.Less(t, low, high)
	assert.Equal(t, 1.0, high)
	assert.GreaterOrEqual(t, low, 0.0)

	// thresholds grow stricter with stage
	before := e.EmergenceThresholds()[state.FieldAwareness]
	require.NoError(t, e.ForceStage(state.StageEmergence, "test"))
	after := e.EmergenceThresholds()[state.FieldAwareness]
	assert.Greater(t, after, before)
}

func TestEngine_EvolutionStability(t *testing.T) {
	e, _ := newEngine(t)
	assert.Equal(t, 1.0, e.EvolutionStability())

	steady, _ := newEngine(t)
	for i := 0; i < 10; i++ {
		steady.ProcessEvolution(highCoherence(), state.Uniform(0.5))
	}

	volatile, _ := newEngine(t)
	for i := 0; i < 10; i++ {
		qs := highCoherence()
		if i%2 == 0 {
			qs.CoherenceLevel = 0
		}
		volatile.ProcessEvolution(qs, state.Uniform(float64(i%2)))
	}
	assert.Less(t, volatile.EvolutionStability(), steady.EvolutionStability())
}

func TestEngine_SnapshotRestore(t *testing.T) {
	e, _ := newEngine(t)
	for i := 0; i < 3; i++ {
		e.ProcessEvolution(highCoherence(), state.Uniform(0.95))
	}
	saved := e.Snapshot()

	other, _ := newEngine(t)
	require.NoError(t, other.Restore(saved))
	assert.Equal(t, e.Stage(), other.Stage())
	assert.Equal(t, e.Metrics(), other.Metrics())
	assert.Len(t, other.History(), len(e.History()))

	assert.ErrorIs(t, other.Restore(Memory{Stage: "bogus"}), errtrack.ErrValidation)
}

func TestLevelOf(t *testing.T) {
	assert.Equal(t, LevelDormant, LevelOf(state.Uniform(0.1)))
	assert.Equal(t, LevelAwakening, LevelOf(state.Uniform(0.3)))
	assert.Equal(t, LevelAware, LevelOf(state.Uniform(0.5)))
	assert.Equal(t, LevelSentient, LevelOf(state.Uniform(0.7)))
	assert.Equal(t, LevelEnlightened, LevelOf(state.Uniform(0.9)))
}
