// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package glossarydb persists glossary entries in SQLite. It
// implements glossary.Backend over lib/sqlitepool.
//
// The storage model mirrors the glossary's unit of persistence: one
// row per normalized key, holding the key's entire value list as a
// JSON array. Every write replaces the row wholesale inside one
// IMMEDIATE transaction (delete, then insert), so an individual write
// is atomic — but the glossary's read-modify-write sequence across
// two backend calls is not, and is not meant to be.
package glossarydb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/termkeep/termkeep/lib/glossary"
	"github.com/termkeep/termkeep/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key         TEXT PRIMARY KEY,
	values_json TEXT NOT NULL
);
`

// Store is the SQLite-backed glossary persistence collaborator.
// Safe for concurrent use; each operation borrows one pooled
// connection for its duration.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Config holds the parameters for opening a glossary database.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist. Use ":memory:" with PoolSize 1 for tests.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Open creates the database file if needed, applies the schema, and
// returns a ready Store. The caller must Close it.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("glossarydb: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// ReadEntry returns the values stored under the normalized key.
func (s *Store) ReadEntry(ctx context.Context, key string) ([]glossary.Value, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("glossarydb: read %q: %w", key, err)
	}
	defer s.pool.Put(conn)

	var valuesJSON string
	var found bool
	err = sqlitex.Execute(conn, "SELECT values_json FROM entries WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			valuesJSON = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("glossarydb: read %q: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}

	var values []glossary.Value
	if err := json.Unmarshal([]byte(valuesJSON), &values); err != nil {
		return nil, false, fmt.Errorf("glossarydb: decoding values for %q: %w", key, err)
	}
	return values, true, nil
}

// ReplaceEntry overwrites the key's value list in full: delete, then
// insert, in one IMMEDIATE transaction.
func (s *Store) ReplaceEntry(ctx context.Context, key string, values []glossary.Value) (err error) {
	if len(values) == 0 {
		return fmt.Errorf("glossarydb: refusing to persist empty entry for %q", key)
	}

	encoded, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("glossarydb: encoding values for %q: %w", key, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("glossarydb: replace %q: %w", key, err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("glossarydb: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, "DELETE FROM entries WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
	})
	if err != nil {
		return fmt.Errorf("glossarydb: replace %q: %w", key, err)
	}

	err = sqlitex.Execute(conn, "INSERT INTO entries (key, values_json) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{key, string(encoded)},
	})
	if err != nil {
		return fmt.Errorf("glossarydb: replace %q: %w", key, err)
	}
	return nil
}

// DeleteEntry removes the entry. Returns true if a row was deleted.
func (s *Store) DeleteEntry(ctx context.Context, key string) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("glossarydb: delete %q: %w", key, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM entries WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key},
	})
	if err != nil {
		return false, fmt.Errorf("glossarydb: delete %q: %w", key, err)
	}
	return conn.Changes() > 0, nil
}

// Keys returns stored keys with their value counts, sorted by key.
// A positive limit caps the list; zero returns everything. Serves the
// admin surface; the conversational path never lists keys.
func (s *Store) Keys(ctx context.Context, limit int) ([]KeyCount, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("glossarydb: keys: %w", err)
	}
	defer s.pool.Put(conn)

	if limit <= 0 {
		// SQLite treats a negative LIMIT as unbounded.
		limit = -1
	}

	var keys []KeyCount
	err = sqlitex.Execute(conn,
		"SELECT key, json_array_length(values_json) FROM entries ORDER BY key LIMIT ?",
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keys = append(keys, KeyCount{
					Key:        stmt.ColumnText(0),
					ValueCount: stmt.ColumnInt(1),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("glossarydb: keys: %w", err)
	}
	return keys, nil
}

// KeyCount pairs a normalized key with its number of values.
type KeyCount struct {
	Key        string `json:"key"`
	ValueCount int    `json:"value_count"`
}

// Export returns every entry with full provenance, sorted by key.
func (s *Store) Export(ctx context.Context) ([]glossary.Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("glossarydb: export: %w", err)
	}
	defer s.pool.Put(conn)

	var entries []glossary.Entry
	err = sqlitex.Execute(conn, "SELECT key, values_json FROM entries ORDER BY key", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var values []glossary.Value
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &values); err != nil {
				return fmt.Errorf("decoding values for %q: %w", stmt.ColumnText(0), err)
			}
			entries = append(entries, glossary.Entry{
				Key:    stmt.ColumnText(0),
				Values: values,
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("glossarydb: export: %w", err)
	}
	return entries, nil
}

// Stats returns aggregate entry and value counts.
func (s *Store) Stats(ctx context.Context) (keys, values int, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("glossarydb: stats: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		"SELECT COUNT(*), COALESCE(SUM(json_array_length(values_json)), 0) FROM entries",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keys = stmt.ColumnInt(0)
				values = stmt.ColumnInt(1)
				return nil
			},
		})
	if err != nil {
		return 0, 0, fmt.Errorf("glossarydb: stats: %w", err)
	}
	return keys, values, nil
}

// Compile-time check: *Store implements glossary.Backend.
var _ glossary.Backend = (*Store)(nil)
