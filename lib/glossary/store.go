// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package glossary

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/termkeep/termkeep/lib/clock"
)

// Value is one definition instance under a key: the text as entered
// (trimmed, case preserved) plus provenance.
type Value struct {
	// Text is the definition text, trimmed, non-empty.
	Text string `json:"value"`

	// CreatedAt is the insertion timestamp in RFC 3339 form.
	CreatedAt string `json:"created_at"`

	// CreatedBy is the resolved identity of the author: email, else
	// username, else display name, else "unknown".
	CreatedBy string `json:"created_by"`
}

// Entry is the full record for one key: the normalized key and its
// values in insertion order. Entries are never persisted empty — a
// key whose last value is removed is deleted outright.
type Entry struct {
	Key    string  `json:"key"`
	Values []Value `json:"values"`
}

// Backend is the persistence collaborator, addressed by normalized
// key. The whole value list is the unit of persistence: ReplaceEntry
// overwrites the key's list in full (delete-then-recreate), and there
// are no partial updates.
type Backend interface {
	// ReadEntry returns the key's values in insertion order. The
	// bool reports whether the entry exists.
	ReadEntry(ctx context.Context, key string) ([]Value, bool, error)

	// ReplaceEntry overwrites the key's value list in full, creating
	// the entry if absent. values must be non-empty.
	ReplaceEntry(ctx context.Context, key string, values []Value) error

	// DeleteEntry removes the entry. Returns true if an entry
	// existed and was deleted.
	DeleteEntry(ctx context.Context, key string) (bool, error)
}

// AddResult is the outcome of Store.AddValue.
type AddResult int

const (
	// Added means the value was appended and persisted.
	Added AddResult = iota
	// Duplicate means an existing value under the key normalizes
	// equal to the new one. Not a fault — a normal outcome.
	Duplicate
	// Invalid means the key or value was empty after trimming.
	Invalid
	// Failed means the backend raised on read or write. The fault is
	// logged; the caller shows a generic save-error reply.
	Failed
)

// Store applies glossary operations against a Backend. Every
// operation reads fresh state, mutates, and writes the full value
// list back; nothing holds a long-lived reference to an entry.
//
// The read-modify-write sequence is the atomicity boundary: two
// concurrent mutations of the same key can interleave their read and
// write phases, and the later write overwrites the earlier one with
// its stale full-list copy. Concurrent writers are not coordinated
// here — the host delivers one conversation's messages sequentially,
// and cross-conversation collisions on one key are an accepted
// limitation.
type Store struct {
	backend Backend
	clock   clock.Clock
	logger  *slog.Logger
}

// NewStore creates a Store. clk stamps CreatedAt on inserted values.
// A nil logger discards.
func NewStore(backend Backend, clk clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		backend: backend,
		clock:   clk,
		logger:  logger,
	}
}

// Values returns the values stored under key, or ok=false if the key
// has no entry. Read faults degrade to absent: the fault is logged,
// never surfaced to the user.
func (s *Store) Values(ctx context.Context, key string) ([]Value, bool) {
	normalized := Normalize(key)
	if normalized == "" {
		return nil, false
	}
	values, exists, err := s.backend.ReadEntry(ctx, normalized)
	if err != nil {
		s.logger.Error("glossary read failed", "key", normalized, "error", err)
		return nil, false
	}
	if !exists {
		return nil, false
	}
	return values, true
}

// AddValue appends a definition under key unless an existing value
// normalizes equal to it. The stored value keeps the trimmed original
// casing; CreatedAt is the current clock time; CreatedBy is the
// author identity ("unknown" if empty).
func (s *Store) AddValue(ctx context.Context, key, value, author string) AddResult {
	normalized := Normalize(key)
	normalizedValue := Normalize(value)
	if normalized == "" || normalizedValue == "" {
		return Invalid
	}

	existing, _, err := s.backend.ReadEntry(ctx, normalized)
	if err != nil {
		s.logger.Error("glossary read failed", "key", normalized, "error", err)
		return Failed
	}
	for _, candidate := range existing {
		if Normalize(candidate.Text) == normalizedValue {
			return Duplicate
		}
	}

	if author == "" {
		author = "unknown"
	}
	updated := append(existing, Value{
		Text:      strings.TrimSpace(value),
		CreatedAt: s.clock.Now().UTC().Format(time.RFC3339),
		CreatedBy: author,
	})

	if err := s.backend.ReplaceEntry(ctx, normalized, updated); err != nil {
		s.logger.Error("glossary write failed", "key", normalized, "error", err)
		return Failed
	}
	return Added
}

// RemoveKey deletes a key and all its values. Returns true if an
// entry existed. Backend faults are logged and reported as false.
func (s *Store) RemoveKey(ctx context.Context, key string) bool {
	normalized := Normalize(key)
	if normalized == "" {
		return false
	}
	deleted, err := s.backend.DeleteEntry(ctx, normalized)
	if err != nil {
		s.logger.Error("glossary delete failed", "key", normalized, "error", err)
		return false
	}
	return deleted
}

// RemoveValue deletes the single value under key whose normalized
// form equals the normalized target. Returns true if a value was
// removed. Removing the last value deletes the entry outright — an
// entry is never persisted empty.
func (s *Store) RemoveValue(ctx context.Context, key, value string) bool {
	normalized := Normalize(key)
	normalizedValue := Normalize(value)
	if normalized == "" || normalizedValue == "" {
		return false
	}

	existing, exists, err := s.backend.ReadEntry(ctx, normalized)
	if err != nil {
		s.logger.Error("glossary read failed", "key", normalized, "error", err)
		return false
	}
	if !exists {
		return false
	}

	remaining := existing[:0:0]
	for _, candidate := range existing {
		if Normalize(candidate.Text) == normalizedValue {
			continue
		}
		remaining = append(remaining, candidate)
	}
	if len(remaining) == len(existing) {
		return false
	}

	if len(remaining) == 0 {
		if _, err := s.backend.DeleteEntry(ctx, normalized); err != nil {
			s.logger.Error("glossary delete failed", "key", normalized, "error", err)
			return false
		}
		return true
	}

	if err := s.backend.ReplaceEntry(ctx, normalized, remaining); err != nil {
		s.logger.Error("glossary write failed", "key", normalized, "error", err)
		return false
	}
	return true
}
