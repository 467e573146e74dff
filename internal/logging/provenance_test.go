package logging

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/state"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	st, err := state.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st.DB()
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)

	entry := ProvenanceEntry{
		VersionID:   "v1",
		EntityID:    "e1",
		TriggerType: "interact",
		SignalsJSON: `{"strength":0.5}`,
		Decision:    "commit",
		Reason:      "passed gate",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var versionID, entityID, decision string
	db.QueryRow("SELECT version_id, entity_id, decision FROM provenance_log").Scan(&versionID, &entityID, &decision)
	if versionID != "v1" {
		t.Errorf("expected version_id 'v1', got %q", versionID)
	}
	if entityID != "e1" {
		t.Errorf("expected entity_id 'e1', got %q", entityID)
	}
	if decision != "commit" {
		t.Errorf("expected decision 'commit', got %q", decision)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)

	entry := ProvenanceEntry{
		EntityID:    "e1",
		TriggerType: "tick",
		Decision:    "no_op",
	}

	before := time.Now().UTC()
	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)

	entry := ProvenanceEntry{
		EntityID:    "e1",
		TriggerType: "tick",
		Decision:    "reject",
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogDecision(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var versionID, signalsJSON, reason sql.NullString
	db.QueryRow("SELECT version_id, signals_json, reason FROM provenance_log").Scan(
		&versionID, &signalsJSON, &reason,
	)
	if versionID.Valid {
		t.Error("expected NULL version_id for empty string")
	}
	if signalsJSON.Valid {
		t.Error("expected NULL signals_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	st, err := state.NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	db := st.DB()
	st.Close() // close to force error

	err = LogDecision(db, ProvenanceEntry{EntityID: "e1", TriggerType: "tick", Decision: "commit"})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestLogUpdate_StoresRecordJSON(t *testing.T) {
	db := setupDB(t)

	rec := UpdateRecord{
		EntityID:   "e1",
		Trigger:    "interact",
		Strength:   0.7,
		Keywords:   []string{"joy"},
		Before:     state.DefaultMetrics(),
		After:      state.Uniform(0.12),
		Stage:      string(state.StageInitialization),
		GateAction: "commit",
		GateReason: "passed gate: soft_score=0.9000",
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := LogUpdate(db, "v9", rec, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var trigger, decision, raw string
	db.QueryRow("SELECT trigger_type, decision, signals_json FROM provenance_log").Scan(&trigger, &decision, &raw)
	if trigger != "interact" || decision != "commit" {
		t.Errorf("unexpected trigger/decision: %q/%q", trigger, decision)
	}
	var got UpdateRecord
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Strength != 0.7 || got.After.AwarenessLevel != 0.12 || len(got.Keywords) != 1 {
		t.Errorf("record not preserved: %+v", got)
	}
}

// #endregion log-decision-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests

// #region read-tests
func TestProvenanceFor_RoundTrip(t *testing.T) {
	db := setupDB(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := UpdateRecord{EntityID: "e1", Trigger: "interact", Strength: 0.4, Stage: "growth", GateAction: "commit"}
	if err := LogUpdate(db, "v9", rec, at); err != nil {
		t.Fatalf("LogUpdate: %v", err)
	}

	e, ok, err := ProvenanceFor(db, "v9")
	if err != nil || !ok {
		t.Fatalf("ProvenanceFor: ok=%v err=%v", ok, err)
	}
	if e.EntityID != "e1" || e.Decision != "commit" || !e.CreatedAt.Equal(at) {
		t.Errorf("unexpected entry: %+v", e)
	}
	got, ok := UpdateRecordOf(e)
	if !ok {
		t.Fatal("expected update record")
	}
	if got.Strength != 0.4 || got.Stage != "growth" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestProvenanceFor_Missing(t *testing.T) {
	db := setupDB(t)
	_, ok, err := ProvenanceFor(db, "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected no entry")
	}
	if _, ok := UpdateRecordOf(ProvenanceEntry{SignalsJSON: "{bad"}); ok {
		t.Error("expected malformed json to be ignored")
	}
}

// #endregion read-tests
