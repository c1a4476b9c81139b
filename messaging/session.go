// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "context"

// Session is the authenticated Matrix API surface the bot consumes.
// DirectSession implements it against a real homeserver; tests provide
// fakes.
type Session interface {
	// UserID returns the fully-qualified Matrix user ID for this session.
	UserID() string

	// WhoAmI validates the access token and returns the user ID.
	WhoAmI(ctx context.Context) (string, error)

	// Sync performs one /sync request (long-polling when a timeout is set).
	Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error)

	// SendMessage sends an m.room.message event to a room. Returns the event ID.
	SendMessage(ctx context.Context, roomID string, content MessageContent) (string, error)

	// JoinRoom joins a room by ID. Returns the room ID.
	JoinRoom(ctx context.Context, roomID string) (string, error)

	// LeaveRoom leaves a room. Leaving a room the session was only
	// invited to rejects the invite.
	LeaveRoom(ctx context.Context, roomID string) error

	// GetRoomMembers returns the members of a room.
	GetRoomMembers(ctx context.Context, roomID string) ([]RoomMember, error)

	// GetDisplayName fetches a user's profile display name. Empty string
	// (not an error) when the user has no display name set.
	GetDisplayName(ctx context.Context, userID string) (string, error)

	// Close releases session resources, including the access token memory.
	Close() error
}

// Compile-time check that DirectSession satisfies Session.
var _ Session = (*DirectSession)(nil)
