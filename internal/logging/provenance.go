package logging

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (version_id, entity_id, trigger_type, signals_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.VersionID),
		entry.EntityID,
		entry.TriggerType,
		nullIfEmpty(entry.SignalsJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// LogUpdate serializes rec and writes it as a provenance entry.
func LogUpdate(db *sql.DB, versionID string, rec UpdateRecord, at time.Time) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal update record: %w", err)
	}
	return LogDecision(db, ProvenanceEntry{
		VersionID:   versionID,
		EntityID:    rec.EntityID,
		TriggerType: rec.Trigger,
		SignalsJSON: string(raw),
		Decision:    rec.GateAction,
		Reason:      rec.GateReason,
		CreatedAt:   at,
	})
}

// #endregion log-decision

// #region read
// ProvenanceFor returns the newest entry recorded for versionID. The bool is
// false when the version has none.
func ProvenanceFor(db *sql.DB, versionID string) (ProvenanceEntry, bool, error) {
	var (
		e             ProvenanceEntry
		vid, sig, why sql.NullString
		created       string
	)
	err := db.QueryRow(
		`SELECT version_id, entity_id, trigger_type, signals_json, decision, reason, created_at
		 FROM provenance_log WHERE version_id = ? ORDER BY id DESC LIMIT 1`, versionID,
	).Scan(&vid, &e.EntityID, &e.TriggerType, &sig, &e.Decision, &why, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ProvenanceEntry{}, false, nil
	}
	if err != nil {
		return ProvenanceEntry{}, false, fmt.Errorf("read provenance %s: %w", versionID, err)
	}
	e.VersionID, e.SignalsJSON, e.Reason = vid.String, sig.String, why.String
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return ProvenanceEntry{}, false, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return e, true, nil
}

// UpdateRecordOf decodes the update record carried by e, if any.
func UpdateRecordOf(e ProvenanceEntry) (UpdateRecord, bool) {
	if e.SignalsJSON == "" {
		return UpdateRecord{}, false
	}
	var rec UpdateRecord
	if err := json.Unmarshal([]byte(e.SignalsJSON), &rec); err != nil {
		return UpdateRecord{}, false
	}
	return rec, true
}

// #endregion read

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
