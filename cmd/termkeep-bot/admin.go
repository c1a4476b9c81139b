// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/termkeep/termkeep/lib/adminsocket"
	"github.com/termkeep/termkeep/lib/clock"
	"github.com/termkeep/termkeep/lib/codec"
	"github.com/termkeep/termkeep/lib/glossarydb"
)

// statsResponse is the data payload for the "stats" action.
type statsResponse struct {
	Keys          int    `cbor:"keys"`
	Values        int    `cbor:"values"`
	UptimeSeconds int64  `cbor:"uptime_seconds"`
	UserID        string `cbor:"user_id"`
}

// keysRequest carries the optional cap for the "keys" action. Zero
// means unlimited.
type keysRequest struct {
	Limit int `cbor:"limit"`
}

// registerAdminActions wires the admin socket actions to the
// glossary database.
//
//	stats  — key and value counts, uptime, bot user ID
//	keys   — every key with its value count, optionally capped
//	export — the full glossary including provenance
func registerAdminActions(server *adminsocket.Server, db *glossarydb.Store, userID string, startedAt time.Time, clk clock.Clock) {
	server.Handle("stats", func(ctx context.Context, raw []byte) (any, error) {
		keys, values, err := db.Stats(ctx)
		if err != nil {
			return nil, err
		}
		return statsResponse{
			Keys:          keys,
			Values:        values,
			UptimeSeconds: int64(clk.Now().Sub(startedAt) / time.Second),
			UserID:        userID,
		}, nil
	})

	server.Handle("keys", func(ctx context.Context, raw []byte) (any, error) {
		var request keysRequest
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return db.Keys(ctx, request.Limit)
	})

	server.Handle("export", func(ctx context.Context, raw []byte) (any, error) {
		return db.Export(ctx)
	})
}
