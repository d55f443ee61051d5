// Package manifest persists a record of completed downloads so that
// repeated runs can report what they will skip. Idempotence itself is
// decided from the files on disk; the manifest is bookkeeping.
package manifest

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped on schema changes; a mismatched database must
// be deleted and rebuilt.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an
// incompatible version.
var ErrSchemaMismatch = errors.New("manifest schema version mismatch")

// Entry is one recorded download.
type Entry struct {
	RunID      string
	Kind       string // "speech" or "noise"
	URL        string
	Path       string
	Language   string
	Reader     string
	Size       int64
	RecordedAt time.Time
}

// Store is the sqlite-backed manifest.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the manifest database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	// A single writer keeps sqlite's locking out of the way.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create manifest schema: %w", err)
		}
		_, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read manifest schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Record stores one completed download. Re-recording the same path
// replaces the previous row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (run_id, kind, url, path, language, reader, size, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			run_id = excluded.run_id,
			kind = excluded.kind,
			url = excluded.url,
			language = excluded.language,
			reader = excluded.reader,
			size = excluded.size,
			recorded_at = excluded.recorded_at`,
		e.RunID, e.Kind, e.URL, e.Path, e.Language, e.Reader, e.Size, recordedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record download %s: %w", e.Path, err)
	}
	return nil
}

// Has reports whether a download at path was recorded before.
func (s *Store) Has(ctx context.Context, path string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM downloads WHERE path = ?", path).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query manifest for %s: %w", path, err)
	}
	return count > 0, nil
}

// List returns all recorded downloads of one kind, oldest first.
// An empty kind returns everything.
func (s *Store) List(ctx context.Context, kind string) ([]Entry, error) {
	query := "SELECT run_id, kind, url, path, language, reader, size, recorded_at FROM downloads"
	args := []any{}
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY recorded_at, path"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var recordedAt string
		if err := rows.Scan(&e.RunID, &e.Kind, &e.URL, &e.Path, &e.Language, &e.Reader, &e.Size, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		e.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
