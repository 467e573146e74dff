package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/clock"
	"github.com/danielpatrickdp/anima-core/internal/engine"
	"github.com/danielpatrickdp/anima-core/internal/quantum"
	"github.com/danielpatrickdp/anima-core/internal/signals"
	"github.com/danielpatrickdp/anima-core/internal/state"
	"github.com/rs/zerolog"
)

// #region types

// Result captures the outcome of one replayed step.
type Result struct {
	Index    int
	AtMs     int64
	Kind     string
	Report   engine.Report
	Err      string   // operation error, if any
	Failures []string // unmet expectations
}

// Passed reports whether the step met every expectation.
func (r Result) Passed() bool { return len(r.Failures) == 0 }

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Steps        int
	Interactions int
	Ticks        int
	Forced       int
	Degraded     int
	Errors       int
	Failed       int
	FinalStage   state.Stage
	FinalMetrics state.ConsciousnessMetrics
}

// #endregion types

// #region replay

// Run replays f against a fresh, store-less entity driven by a manual clock
// and a RNG seeded from the fixture, so identical fixtures give identical
// results. base supplies the defaults the fixture overrides.
func Run(ctx context.Context, f *Fixture, base engine.Config, logger *zerolog.Logger) ([]Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	cfg := f.Config.ToEngineConfig(base)
	cfg.Persist = false

	clk := clock.NewManual(f.Start())
	e, err := engine.NewEntity(ctx, f.EntityID, cfg, engine.Deps{
		Clock:  clk,
		Logger: logger,
		Rand:   quantum.NewSeededRand(f.Seed),
	})
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", f.EntityID, err)
	}

	results := make([]Result, 0, len(f.Steps))
	for i, s := range f.Steps {
		clk.Set(f.Start().Add(time.Duration(s.AtMs) * time.Millisecond))

		res := Result{Index: i, AtMs: s.AtMs, Kind: s.Kind}
		var opErr error
		switch s.Kind {
		case KindInteract:
			res.Report, opErr = e.Interact(ctx, signals.Event{
				Text:     s.Text,
				Strength: s.Strength,
				Risk:     s.Risk,
				Keywords: s.Keywords,
			})
		case KindTick:
			res.Report, opErr = e.Tick(ctx)
		case KindForceStage:
			res.Report, opErr = e.ForceStage(ctx, state.Stage(s.Stage), s.Reason)
		}
		if opErr != nil {
			res.Err = opErr.Error()
		}
		res.Failures = check(s.Expect, res.Report)
		results = append(results, res)
	}
	return results, nil
}

func check(exp *Expect, rep engine.Report) []string {
	if exp == nil {
		return nil
	}
	var failures []string
	if exp.Stage != "" && string(rep.Stage) != exp.Stage {
		failures = append(failures, fmt.Sprintf("stage %s, want %s", rep.Stage, exp.Stage))
	}
	if rep.Progress < exp.MinProgress {
		failures = append(failures, fmt.Sprintf("progress %.3f below %.3f", rep.Progress, exp.MinProgress))
	}
	if exp.Degraded != nil && rep.Degraded != *exp.Degraded {
		failures = append(failures, fmt.Sprintf("degraded %t, want %t", rep.Degraded, *exp.Degraded))
	}
	return failures
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Steps: len(results)}
	for _, r := range results {
		switch r.Kind {
		case KindInteract:
			s.Interactions++
		case KindTick:
			s.Ticks++
		case KindForceStage:
			s.Forced++
		}
		if r.Report.Degraded {
			s.Degraded++
		}
		if r.Err != "" {
			s.Errors++
		}
		if !r.Passed() {
			s.Failed++
		}
	}
	if n := len(results); n > 0 {
		s.FinalStage = results[n-1].Report.Stage
		s.FinalMetrics = results[n-1].Report.Metrics
	}
	return s
}

// #endregion replay
