package replay

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/engine"
	"github.com/danielpatrickdp/anima-core/internal/errtrack"
	"github.com/danielpatrickdp/anima-core/internal/logging"
	"github.com/danielpatrickdp/anima-core/internal/state"
)

// Step kinds.
const (
	KindInteract   = "interact"
	KindTick       = "tick"
	KindForceStage = "force_stage"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	EntityID    string        `json:"entity_id"`
	StartUnixMs int64         `json:"start_unix_ms"`
	Seed        uint64        `json:"seed"`
	Config      FixtureConfig `json:"config"`
	Steps       []Step        `json:"steps"`
}

// FixtureConfig overrides engine defaults for a run. Zero values keep the default.
type FixtureConfig struct {
	Hysteresis   int     `json:"hysteresis,omitempty"`
	StepBaseRate float64 `json:"step_base_rate,omitempty"`
	StepMaxDelta float64 `json:"step_max_delta,omitempty"`
	GateMaxDelta float64 `json:"gate_max_delta,omitempty"`
}

// Step is one timed operation. AtMs is relative to StartUnixMs and must not
// decrease between steps.
type Step struct {
	AtMs     int64    `json:"at_ms"`
	Kind     string   `json:"kind"`
	Text     string   `json:"text,omitempty"`
	Strength float64  `json:"strength,omitempty"`
	Risk     float64  `json:"risk,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Stage    string   `json:"stage,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Expect   *Expect  `json:"expect,omitempty"`
}

// Expect lists the checks applied to a step's report.
type Expect struct {
	Stage       string  `json:"stage,omitempty"`
	MinProgress float64 `json:"min_progress,omitempty"`
	Degraded    *bool   `json:"degraded,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads, parses and validates a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks the entity id, step kinds, stage names and step order.
func (f *Fixture) Validate() error {
	if f.EntityID == "" {
		return errtrack.Validationf("validate fixture", "entity_id is required")
	}
	var prev int64
	for i, s := range f.Steps {
		if s.AtMs < prev {
			return errtrack.Validationf("validate fixture", "step %d: at_ms %d before %d", i, s.AtMs, prev)
		}
		prev = s.AtMs
		switch s.Kind {
		case KindInteract, KindTick:
		case KindForceStage:
			if _, err := state.ParseStage(s.Stage); err != nil {
				return errtrack.E(errtrack.ErrValidation, "validate fixture", fmt.Errorf("step %d: %w", i, err))
			}
		default:
			return errtrack.Validationf("validate fixture", "step %d: unknown kind %q", i, s.Kind)
		}
		if s.Expect != nil && s.Expect.Stage != "" {
			if _, err := state.ParseStage(s.Expect.Stage); err != nil {
				return errtrack.E(errtrack.ErrValidation, "validate fixture", fmt.Errorf("step %d expect: %w", i, err))
			}
		}
	}
	return nil
}

// Start returns the fixture's starting instant.
func (f *Fixture) Start() time.Time {
	return time.UnixMilli(f.StartUnixMs).UTC()
}

// ToEngineConfig overlays the fixture overrides on base.
func (fc FixtureConfig) ToEngineConfig(base engine.Config) engine.Config {
	if fc.Hysteresis > 0 {
		base.Evolution.Hysteresis = fc.Hysteresis
	}
	if fc.StepBaseRate > 0 {
		base.Evolution.Step.BaseRate = fc.StepBaseRate
	}
	if fc.StepMaxDelta > 0 {
		base.Evolution.Step.MaxDelta = fc.StepMaxDelta
	}
	if fc.GateMaxDelta > 0 {
		base.Gate.MaxDelta = fc.GateMaxDelta
	}
	return base
}

// #endregion fixture-loader

// #region export

// ExportFixture rebuilds a fixture from the last provenance rows of
// entityID, oldest first. Each step expects the stage that was recorded.
func ExportFixture(db *sql.DB, entityID string, last int) (Fixture, error) {
	rows, err := db.Query(
		`SELECT trigger_type, signals_json, created_at FROM (
			SELECT id, trigger_type, signals_json, created_at FROM provenance_log
			WHERE entity_id = ? AND trigger_type IN (?, ?, ?)
			ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`,
		entityID, engine.TriggerInteract, engine.TriggerTick, engine.TriggerForceStage, last,
	)
	if err != nil {
		return Fixture{}, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	f := Fixture{EntityID: entityID}
	var start time.Time
	for rows.Next() {
		var trigger, created string
		var sigJSON sql.NullString
		if err := rows.Scan(&trigger, &sigJSON, &created); err != nil {
			return Fixture{}, fmt.Errorf("scan row: %w", err)
		}
		if !sigJSON.Valid {
			continue
		}
		var rec logging.UpdateRecord
		if err := json.Unmarshal([]byte(sigJSON.String), &rec); err != nil {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return Fixture{}, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		if start.IsZero() {
			start = at
			f.StartUnixMs = at.UnixMilli()
		}
		f.Steps = append(f.Steps, stepFromRecord(trigger, rec, at.Sub(start).Milliseconds()))
	}
	if err := rows.Err(); err != nil {
		return Fixture{}, fmt.Errorf("iterate rows: %w", err)
	}
	if len(f.Steps) == 0 {
		return Fixture{}, fmt.Errorf("export %s: %w", entityID, state.ErrNotFound)
	}
	f.Description = fmt.Sprintf("export of %d steps for %s", len(f.Steps), entityID)
	return f, nil
}

func stepFromRecord(trigger string, rec logging.UpdateRecord, atMs int64) Step {
	s := Step{AtMs: atMs, Kind: trigger}
	switch trigger {
	case engine.TriggerInteract:
		s.Strength = rec.Strength
		s.Keywords = rec.Keywords
	case engine.TriggerForceStage:
		s.Stage = rec.Stage
		s.Reason = rec.GateReason
	}
	if rec.Stage != "" {
		s.Expect = &Expect{Stage: rec.Stage}
	}
	return s
}

// #endregion export
