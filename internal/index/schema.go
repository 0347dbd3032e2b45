// Package index provides the SQLite-backed cache of notes, todos, and
// attachments. The cache is a rebuildable projection of the file tree and is
// never authoritative; every row can be reconstructed by a full scan.
package index

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	path         TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	date         TEXT,
	tags         TEXT NOT NULL DEFAULT '[]',
	notebook     TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	excluded     INTEGER NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS todos (
	id           TEXT PRIMARY KEY,
	source_path  TEXT NOT NULL,
	source_type  TEXT NOT NULL DEFAULT 'note',
	source_alias TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL,
	raw_content  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	priority     INTEGER,
	due_date     TEXT,
	due_has_time INTEGER NOT NULL DEFAULT 0,
	created_date DATETIME NOT NULL,
	tags         TEXT NOT NULL DEFAULT '[]',
	line_number  INTEGER NOT NULL,
	indent       INTEGER NOT NULL DEFAULT 0,
	parent_id    TEXT NOT NULL DEFAULT '',
	added_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_todos_source ON todos(source_path);
CREATE INDEX IF NOT EXISTS idx_todos_due ON todos(due_date);
CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status);

CREATE TABLE IF NOT EXISTS attachments (
	id         TEXT PRIMARY KEY,
	owner_type TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	type       TEXT NOT NULL,
	path       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	added_date DATETIME NOT NULL,
	copied     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attachments_owner ON attachments(owner_type, owner_id);
`

// DB wraps a sql.DB with cache-specific operations. One DB is opened per
// process run and passed explicitly to every component; there is no global
// handle.
type DB struct {
	conn *sql.DB

	// mutations counts writes that actually changed cache state. A rescan
	// over an unchanged tree leaves it untouched, which is how tests verify
	// scan idempotence.
	mutations atomic.Int64
}

// Open opens (or creates) the SQLite cache and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Mutations returns the number of state-changing writes since Open.
func (db *DB) Mutations() int64 {
	return db.mutations.Load()
}
