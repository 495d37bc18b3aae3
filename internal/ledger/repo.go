package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/keyhash/internal/apperr"
	"github.com/starford/keyhash/internal/models"
)

// DefaultLimit bounds List when no positive limit is given.
const DefaultLimit = 50

// Record inserts a and sets its ID.
func (db *DB) Record(a *models.Artifact) error {
	res, err := db.conn.Exec(`
		INSERT INTO artifacts (key, source, source_checksum, algorithm, digest, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.Key, a.Source, a.SourceChecksum, a.Algorithm, a.Digest, a.Path, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("ledger: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ledger: last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// List returns the newest artifacts first, optionally filtered by key.
func (db *DB) List(key string, limit int) ([]models.Artifact, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT id, key, source, source_checksum, algorithm, digest, path, created_at FROM artifacts`
	args := []any{}
	if key != "" {
		query += ` WHERE key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Latest returns the newest artifact for key, or apperr.ErrNotFound.
func (db *DB) Latest(key string) (*models.Artifact, error) {
	row := db.conn.QueryRow(`
		SELECT id, key, source, source_checksum, algorithm, digest, path, created_at
		FROM artifacts WHERE key = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, key)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(s scanner) (*models.Artifact, error) {
	var (
		a       models.Artifact
		created int64
	)
	if err := s.Scan(&a.ID, &a.Key, &a.Source, &a.SourceChecksum, &a.Algorithm, &a.Digest, &a.Path, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}
	a.CreatedAt = time.Unix(created, 0)
	return &a, nil
}
