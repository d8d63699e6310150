// Package registry keeps a SQLite record of every governed document, its
// classification and violations, and an audit trail of lifecycle events.
// Full-text search uses FTS5 when built with the sqlite_fts5 tag.
package registry

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path              TEXT PRIMARY KEY,
	filename          TEXT NOT NULL,
	category          TEXT NOT NULL,
	conditional       INTEGER NOT NULL DEFAULT 0,
	location          TEXT NOT NULL,
	created_at        DATETIME,
	checksum          TEXT NOT NULL DEFAULT '',
	body_checksum     TEXT NOT NULL DEFAULT '',
	baseline_body     TEXT NOT NULL DEFAULT '',
	baseline_modified TEXT NOT NULL DEFAULT '',
	header            TEXT NOT NULL DEFAULT '',
	purpose           TEXT NOT NULL DEFAULT '',
	violations        TEXT NOT NULL DEFAULT '[]',
	violation_count   INTEGER NOT NULL DEFAULT 0,
	body              TEXT NOT NULL DEFAULT '',
	updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
CREATE INDEX IF NOT EXISTS idx_documents_location ON documents(location);

CREATE TABLE IF NOT EXISTS events (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	path      TEXT NOT NULL,
	from_path TEXT NOT NULL DEFAULT '',
	to_path   TEXT NOT NULL DEFAULT '',
	detail    TEXT NOT NULL DEFAULT '',
	at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_path ON events(path);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
`

// DB wraps a sql.DB with registry-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("registry: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("registry: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
