package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry is one stored key with its metadata.
type Entry struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key is required")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// Keys lists stored keys that start with prefix, sorted by key.
func (s *Store) Keys(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT key, length(value), updated_at FROM kv WHERE ? = '' OR instr(key, ?) = 1 ORDER BY key`,
		prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.Key, &e.Size, &ms); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes every key starting with prefix and returns how many were
// removed. An empty prefix clears the whole store.
func (s *Store) Clear(ctx context.Context, prefix string) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if prefix == "" {
		res, err = s.DB.ExecContext(ctx, `DELETE FROM kv`)
	} else {
		res, err = s.DB.ExecContext(ctx, `DELETE FROM kv WHERE instr(key, ?) = 1`, prefix)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear store: %w", err)
	}
	return res.RowsAffected()
}

// GetJSON decodes the value under key into v.
func (s *Store) GetJSON(ctx context.Context, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}
