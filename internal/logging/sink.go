package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/anima-core/internal/errtrack"
)

// #region sql-sink
// SQLSink is an errtrack.Sink that appends every tracked error to the
// error_log table.
type SQLSink struct {
	db       *sql.DB
	entityID string
}

// NewSQLSink creates a sink writing rows tagged with entityID.
func NewSQLSink(db *sql.DB, entityID string) *SQLSink {
	return &SQLSink{db: db, entityID: entityID}
}

// Write inserts rec. Context values that cannot be encoded are stringified.
func (s *SQLSink) Write(ctx context.Context, rec errtrack.Record) error {
	raw, err := json.Marshal(rec.Context)
	if err != nil {
		raw, _ = json.Marshal(fmt.Sprint(rec.Context))
	}
	at := rec.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO error_log (record_id, entity_id, category, severity, message, context_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		nullIfEmpty(s.entityID),
		string(rec.Category),
		rec.Severity.String(),
		nullIfEmpty(rec.Message),
		string(raw),
		at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}

// #endregion sql-sink
