// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package glossary

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Inbound is one message presented to the Dispatcher. The host
// transport fills it in: Text is the raw message body, Author the
// resolved provenance identity of the sender, Direct whether the
// message arrived in a one-to-one conversation, and Self whether the
// sender is the bot's own account.
type Inbound struct {
	Text   string
	Author string
	Direct bool
	Self   bool
}

// Dispatcher routes inbound messages through the command grammar to
// the store and renders replies. One Dispatcher handles all
// conversations; it keeps no per-conversation state.
//
// Processing moves through fixed stages: the entry guard drops
// ineligible messages, classification picks one of add, multi-add,
// remove, details, help, or the search fallback, the handler runs
// store operations, and the reply is drawn from the template table.
type Dispatcher struct {
	store  *Store
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given store. A nil
// logger discards.
func NewDispatcher(store *Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		store:  store,
		logger: logger,
	}
}

// Dispatch processes one message and returns the reply text. ok=false
// means the message was dropped by the entry guard (not a direct
// conversation, sent by the bot itself, or empty) — a silent filter,
// not an error. Every accepted message produces exactly one reply.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) (reply string, ok bool) {
	if !in.Direct || in.Self || strings.TrimSpace(in.Text) == "" {
		return "", false
	}

	command, payload := Classify(in.Text)
	switch command {
	case CommandAdd:
		return d.handleAdd(ctx, payload, in.Author), true
	case CommandMultiAdd:
		return d.handleMultiAdd(ctx, payload, in.Author), true
	case CommandRemove:
		return d.handleRemove(ctx, payload), true
	case CommandDetails:
		return d.handleDetails(ctx, payload), true
	case CommandHelp:
		return helpText, true
	default:
		return d.handleSearch(ctx, payload), true
	}
}

func (d *Dispatcher) handleAdd(ctx context.Context, payload, author string) string {
	pair, ok := ParseKeyValue(payload)
	if !ok {
		return replyInvalidAdd
	}

	switch d.store.AddValue(ctx, pair.Key, pair.Value, author) {
	case Added:
		d.logger.Info("value added", "key", Normalize(pair.Key), "author", author)
		return fmt.Sprintf(replyAdded, pair.Value, pair.Key)
	case Duplicate:
		return fmt.Sprintf(replyDuplicate, pair.Key, pair.Value)
	default:
		return replySaveError
	}
}

func (d *Dispatcher) handleMultiAdd(ctx context.Context, payload, author string) string {
	pairs := ParseMultiAdd(payload)
	if len(pairs) == 0 {
		return replyInvalidMultiAdd
	}

	// Each pair is processed independently; a later failure does not
	// roll back earlier successes.
	var added, duplicates, failed int
	for _, pair := range pairs {
		switch d.store.AddValue(ctx, pair.Key, pair.Value, author) {
		case Added:
			added++
		case Duplicate:
			duplicates++
		default:
			failed++
		}
	}
	d.logger.Info("multi-add processed",
		"pairs", len(pairs),
		"added", added,
		"duplicates", duplicates,
		"failed", failed,
	)
	return formatMultiAddSummary(added, duplicates, failed)
}

func (d *Dispatcher) handleRemove(ctx context.Context, payload string) string {
	// A valid colon pair removes one value; otherwise the whole
	// payload is a bare key and the entry goes away wholesale.
	if pair, ok := ParseKeyValue(payload); ok {
		if d.store.RemoveValue(ctx, pair.Key, pair.Value) {
			return fmt.Sprintf(replyValueRemoved, pair.Value, pair.Key)
		}
		return fmt.Sprintf(replyValueNotFound, pair.Key, pair.Value)
	}

	key := strings.TrimSpace(payload)
	if key == "" {
		return replyInvalidRemove
	}
	if d.store.RemoveKey(ctx, key) {
		return fmt.Sprintf(replyKeyRemoved, key)
	}
	return fmt.Sprintf(replyKeyNotFound, key)
}

func (d *Dispatcher) handleDetails(ctx context.Context, payload string) string {
	pair, ok := ParseKeyValue(payload)
	if !ok {
		return replyInvalidDetails
	}

	values, exists := d.store.Values(ctx, pair.Key)
	if !exists {
		return fmt.Sprintf(replyKeyNotFound, pair.Key)
	}

	target := Normalize(pair.Value)
	for _, value := range values {
		if Normalize(value.Text) == target {
			return formatDetails(pair.Key, value)
		}
	}
	return fmt.Sprintf(replyValueNotFound, pair.Key, pair.Value)
}

func (d *Dispatcher) handleSearch(ctx context.Context, payload string) string {
	key := strings.TrimSpace(payload)
	if key == "" {
		return replyInvalidKey
	}

	values, exists := d.store.Values(ctx, key)
	if !exists || len(values) == 0 {
		return fmt.Sprintf(replySearchMiss, key)
	}
	return FormatValues(key, values)
}
