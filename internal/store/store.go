// Package store persists the dashboard's key-value entries (connection
// config, last view, cached sprint data) as JSON blobs in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Well-known keys.
const (
	KeyJiraConfig = "jira-config"
	KeyActiveTab  = "active-tab"
	KeyTickets    = "tickets"
	KeySprintObj  = "sprint-obj"
	KeyTTL        = "ttl"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the SQLite key-value table.
type Store struct {
	db *sql.DB
}

// Tx exposes key-value writes inside a transaction.
type Tx struct {
	ex execer
}

// Open opens or creates a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	escapedPath := strings.ReplaceAll(dbPath, " ", "%20")
	db, err := sql.Open("sqlite", "file:"+escapedPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value for key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	return get(ctx, s.db, key)
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return set(ctx, s.db, key, value)
}

// Delete removes the given keys. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return del(ctx, s.db, keys...)
}

// GetJSON decodes the value under key into v.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	return getJSON(ctx, s.db, key, v)
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	return setJSON(ctx, s.db, key, v)
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{ex: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (t *Tx) Set(ctx context.Context, key, value string) error {
	return set(ctx, t.ex, key, value)
}

func (t *Tx) SetJSON(ctx context.Context, key string, v any) error {
	return setJSON(ctx, t.ex, key, v)
}

func (t *Tx) Delete(ctx context.Context, keys ...string) error {
	return del(ctx, t.ex, keys...)
}

func get(ctx context.Context, ex execer, key string) (string, bool, error) {
	var value string
	err := ex.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func set(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, Now())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func del(ctx context.Context, ex execer, keys ...string) error {
	for _, key := range keys {
		if _, err := ex.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func getJSON(ctx context.Context, ex execer, key string, v any) (bool, error) {
	raw, ok, err := get(ctx, ex, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func setJSON(ctx context.Context, ex execer, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return set(ctx, ex, key, string(data))
}

// Now returns the current time formatted for SQLite storage.
// It uses UTC and strips the monotonic clock reading to produce
// clean RFC3339 timestamps that SQLite datetime functions understand.
func Now() time.Time {
	return time.Now().UTC().Round(0)
}
