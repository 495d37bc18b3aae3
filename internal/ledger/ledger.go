// Package ledger records every artifact keyhash writes in a SQLite database.
package ledger

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/keyhash/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	key             TEXT    NOT NULL,
	source          TEXT    NOT NULL,
	source_checksum TEXT    NOT NULL DEFAULT '',
	algorithm       TEXT    NOT NULL,
	digest          TEXT    NOT NULL,
	path            TEXT    NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_key ON artifacts(key, created_at);
`

// Recorder is what the extraction service needs from a ledger.
type Recorder interface {
	Record(a *models.Artifact) error
}

// Reader lists recorded artifacts.
type Reader interface {
	List(key string, limit int) ([]models.Artifact, error)
	Latest(key string) (*models.Artifact, error)
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ Recorder = (*DB)(nil)
	_ Reader   = (*DB)(nil)
)

// DB wraps a sql.DB with ledger operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
