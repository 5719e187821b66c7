// Package store persists csae data in a single SQLite key-value table.
//
// Values are opaque strings; typed records (settings, snippets, favorites)
// are stored as JSON documents under fixed keys. Writes are last-write-wins
// per key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	_ "modernc.org/sqlite"
)

// SchemaVersion is the layout version written to new stores.
const SchemaVersion = "1.0.0"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// ErrIncompatible is returned when a store was written by a newer major
// schema version.
var ErrIncompatible = errors.New("store was written by an incompatible version")

// Schema contains the DDL applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Store is the csae database handle.
type Store struct {
	DB   *sql.DB
	path string
}

// Open opens (or creates) the store at path, applies pragmas and the schema,
// and checks the schema version.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// One connection keeps :memory: stores coherent and serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{DB: db, path: path}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	for _, p := range pragmas {
		if _, err := s.DB.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply %s: %w", p, err)
		}
	}
	if _, err := s.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return s.checkVersion(ctx)
}

func (s *Store) checkVersion(ctx context.Context) error {
	current := semver.MustParse(SchemaVersion)

	var stored string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'schema_version'`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.DB.ExecContext(ctx,
			`INSERT INTO meta (name, value) VALUES ('schema_version', ?)`, current.String())
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	v, err := semver.NewVersion(stored)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", stored, err)
	}
	if v.Major() > current.Major() {
		return fmt.Errorf("%w: schema %s, supported %s", ErrIncompatible, v, current)
	}
	return nil
}

// Version returns the schema version recorded in the store.
func (s *Store) Version(ctx context.Context) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'schema_version'`).Scan(&v)
	return v, err
}

// Path returns the path the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
