// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/termkeep/termkeep/lib/clock"
	"github.com/termkeep/termkeep/messaging"
)

// syncFilter restricts the /sync response to the event types the bot
// cares about: room messages for command handling and membership
// state for direct-room classification. Everything else (presence,
// ephemeral events, account data) is filtered out server-side.
var syncFilter = buildSyncFilter()

func buildSyncFilter() string {
	eventTypes := []string{"m.room.message", "m.room.member"}
	emptyTypes := []string{}

	filter := map[string]any{
		"room": map[string]any{
			"state": map[string]any{
				"types": []string{"m.room.member"},
			},
			"timeline": map[string]any{
				"types": eventTypes,
				"limit": 100,
			},
			"ephemeral": map[string]any{
				"types": emptyTypes,
			},
			"account_data": map[string]any{
				"types": emptyTypes,
			},
		},
		"presence": map[string]any{
			"types": emptyTypes,
		},
		"account_data": map[string]any{
			"types": emptyTypes,
		},
	}

	data, err := json.Marshal(filter)
	if err != nil {
		panic("building sync filter: " + err.Error())
	}
	return string(data)
}

// syncConfig configures the Matrix /sync long-poll loop.
type syncConfig struct {
	// Filter is the inline JSON filter restricting which event types
	// the homeserver returns.
	Filter string

	// Timeout is the long-poll timeout in milliseconds. The homeserver
	// holds the connection open for this duration when no events are
	// available, then returns an empty response. Default: 30000 (30s).
	Timeout int

	// MaxBackoff is the maximum duration between retry attempts on
	// transient /sync errors. The loop uses exponential backoff
	// starting at 1 second. Default: 30 seconds.
	MaxBackoff time.Duration
}

// syncHandler is called for each /sync response. The next /sync poll
// starts after the handler returns.
type syncHandler func(ctx context.Context, response *messaging.SyncResponse)

// runSyncLoop runs the incremental Matrix /sync long-poll loop. It
// polls the homeserver with the given since token and calls handler
// for each response. The loop continues until ctx is cancelled.
//
// On transient errors, the loop retries with exponential backoff
// (1 second to config.MaxBackoff). On context cancellation, the loop
// returns cleanly.
//
// The caller is responsible for performing the initial sync and
// processing that response before starting this loop.
func runSyncLoop(ctx context.Context, session messaging.Session, config syncConfig, sinceToken string, handler syncHandler, clk clock.Clock, logger *slog.Logger) {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30000
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		options := messaging.SyncOptions{
			Since:      sinceToken,
			Timeout:    timeout,
			SetTimeout: true,
			Filter:     config.Filter,
		}

		response, err := session.Sync(ctx, options)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("sync failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-clk.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch

		handler(ctx, response)
	}
}
