package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an entity or version has no persisted row.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS entity_versions (
	version_id    TEXT PRIMARY KEY,
	entity_id     TEXT NOT NULL,
	parent_id     TEXT,
	blob          BLOB NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES entity_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_versions_entity
	ON entity_versions(entity_id, created_at);

CREATE TABLE IF NOT EXISTS active_entity (
	entity_id     TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES entity_versions(version_id)
);

CREATE TABLE IF NOT EXISTS error_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id     TEXT NOT NULL,
	entity_id     TEXT,
	category      TEXT NOT NULL,
	severity      TEXT NOT NULL,
	message       TEXT,
	context_json  TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT,
	entity_id     TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	signals_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists opaque per-entity blobs as a version chain in SQLite, with
// one active pointer per entity.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// :memory: databases are per-connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region save
// Save inserts a new version of entityID's blob, parented on the current
// active version, and moves the active pointer to it atomically.
func (s *Store) Save(entityID string, blob []byte, reason string) (string, error) {
	if entityID == "" {
		return "", fmt.Errorf("save: empty entity id")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	var parent string
	err = tx.QueryRow(`SELECT version_id FROM active_entity WHERE entity_id = ?`, entityID).Scan(&parent)
	switch {
	case err == nil:
		parentPtr = parent
	case errors.Is(err, sql.ErrNoRows):
	default:
		return "", fmt.Errorf("get active: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO entity_versions (version_id, entity_id, parent_id, blob, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, entityID, parentPtr, blob, reason, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_entity (entity_id, version_id) VALUES (?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET version_id = excluded.version_id`,
		entityID, id,
	)
	if err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// #endregion save

// #region load
// Load returns the active blob for entityID, or ErrNotFound.
func (s *Store) Load(entityID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(
		`SELECT v.blob FROM active_entity a
		 JOIN entity_versions v ON v.version_id = a.version_id
		 WHERE a.entity_id = ?`, entityID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", entityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", entityID, err)
	}
	return blob, nil
}

// #endregion load

// #region get-version
// GetVersion retrieves a specific version by ID.
func (s *Store) GetVersion(versionID string) (VersionRecord, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.entity_id, v.parent_id, v.blob, v.reason, v.created_at,
		        a.version_id IS NOT NULL
		 FROM entity_versions v
		 LEFT JOIN active_entity a ON a.version_id = v.version_id
		 WHERE v.version_id = ?`, versionID,
	)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("get version %s: %w", versionID, err)
	}
	defer rows.Close()

	recs, err := scanVersions(rows)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("get version %s: %w", versionID, err)
	}
	if len(recs) == 0 {
		return VersionRecord{}, fmt.Errorf("get version %s: %w", versionID, ErrNotFound)
	}
	return recs[0], nil
}

// #endregion get-version

// #region rollback
// Rollback points entityID's active version at a previous version of the same entity.
func (s *Store) Rollback(entityID, targetVersionID string) error {
	// Verify the target version exists and belongs to the entity
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM entity_versions WHERE version_id = ? AND entity_id = ?`,
		targetVersionID, entityID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s of %s: %w", targetVersionID, entityID, ErrNotFound)
	}

	_, err = s.db.Exec(`UPDATE active_entity SET version_id = ? WHERE entity_id = ?`, targetVersionID, entityID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions of entityID, newest first.
func (s *Store) ListVersions(entityID string, limit int) ([]VersionRecord, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.entity_id, v.parent_id, v.blob, v.reason, v.created_at,
		        a.version_id IS NOT NULL
		 FROM entity_versions v
		 LEFT JOIN active_entity a ON a.version_id = v.version_id
		 WHERE v.entity_id = ?
		 ORDER BY v.rowid DESC LIMIT ?`, entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()
	return scanVersions(rows)
}

// Entities returns every entity id with an active version.
func (s *Store) Entities() ([]string, error) {
	rows, err := s.db.Query(`SELECT entity_id FROM active_entity ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion list-versions

// #region scan
func scanVersions(rows *sql.Rows) ([]VersionRecord, error) {
	var records []VersionRecord
	for rows.Next() {
		var rec VersionRecord
		var parentID, reason sql.NullString
		var createdStr string

		if err := rows.Scan(&rec.VersionID, &rec.EntityID, &parentID, &rec.Blob, &reason, &createdStr, &rec.Active); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			rec.ParentID = parentID.String
		}
		if reason.Valid {
			rec.Reason = reason.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion scan
