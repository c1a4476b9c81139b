// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/termkeep/termkeep/lib/glossary"
	"github.com/termkeep/termkeep/messaging"
)

// roomState tracks the membership of one room, built from m.room.member
// state events seen during sync. The bot treats a room as a direct
// conversation when exactly two users are joined: itself and one human.
type roomState struct {
	// memberships maps user ID to membership state ("join", "leave",
	// "invite", ...).
	memberships map[string]string
}

func newRoomState() *roomState {
	return &roomState{memberships: make(map[string]string)}
}

func (r *roomState) joinedCount() int {
	count := 0
	for _, membership := range r.memberships {
		if membership == "join" {
			count++
		}
	}
	return count
}

// Bot wires the Matrix session to the glossary dispatcher. All state
// is mutated from the sync loop only, so no locking is needed.
type Bot struct {
	session    messaging.Session
	dispatcher *glossary.Dispatcher
	logger     *slog.Logger

	// rooms tracks membership per room for direct-room classification.
	rooms map[string]*roomState

	// displayNames caches profile lookups so author resolution does
	// not hit the homeserver on every message.
	displayNames map[string]string
}

// NewBot creates a Bot. The session must already be authenticated.
func NewBot(session messaging.Session, dispatcher *glossary.Dispatcher, logger *slog.Logger) *Bot {
	return &Bot{
		session:      session,
		dispatcher:   dispatcher,
		logger:       logger,
		rooms:        make(map[string]*roomState),
		displayNames: make(map[string]string),
	}
}

// InitialSync performs the first /sync to obtain a state snapshot and
// returns the next_batch token for the incremental loop. Membership
// state is recorded and pending invites are accepted, but timeline
// messages from the snapshot are not answered: they predate startup,
// and replying to old backlog on every restart would spam the rooms.
func (b *Bot) InitialSync(ctx context.Context) (string, error) {
	response, err := b.session.Sync(ctx, messaging.SyncOptions{Filter: syncFilter})
	if err != nil {
		return "", err
	}

	for roomID, room := range response.Rooms.Join {
		for _, event := range room.State.Events {
			b.applyMemberEvent(roomID, event)
		}
		for _, event := range room.Timeline.Events {
			if event.Type == "m.room.member" {
				b.applyMemberEvent(roomID, event)
			}
		}
	}

	b.acceptInvites(ctx, response.Rooms.Invite)

	b.logger.Info("initial sync complete",
		"rooms", len(b.rooms),
		"next_batch", response.NextBatch,
	)
	return response.NextBatch, nil
}

// HandleSync processes one incremental /sync response: accepts new
// invites, applies membership changes, and dispatches messages.
func (b *Bot) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	b.acceptInvites(ctx, response.Rooms.Invite)

	for roomID, room := range response.Rooms.Join {
		for _, event := range room.State.Events {
			b.applyMemberEvent(roomID, event)
		}
		for _, event := range room.Timeline.Events {
			switch event.Type {
			case "m.room.member":
				b.applyMemberEvent(roomID, event)
			case "m.room.message":
				b.handleMessage(ctx, roomID, event)
			}
		}
	}

	for roomID := range response.Rooms.Leave {
		delete(b.rooms, roomID)
	}
}

// acceptInvites joins rooms the bot has been invited to as a direct
// chat. The invite's stripped state carries the bot's own member event
// with the is_direct flag; invites without it are group rooms and get
// declined so the bot does not accumulate memberships it will never
// answer in. The invite carries no reliable member list, so membership
// is fetched after joining to classify the room.
func (b *Bot) acceptInvites(ctx context.Context, invites map[string]messaging.InvitedRoom) {
	for roomID, invite := range invites {
		if !b.isDirectInvite(invite) {
			b.logger.Info("declining non-direct room invite", "room_id", roomID)
			if err := b.session.LeaveRoom(ctx, roomID); err != nil {
				b.logger.Error("failed to decline room invite",
					"room_id", roomID,
					"error", err,
				)
			}
			continue
		}

		b.logger.Info("accepting room invite", "room_id", roomID)
		if _, err := b.session.JoinRoom(ctx, roomID); err != nil {
			b.logger.Error("failed to accept room invite",
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		b.seedRoomMembers(ctx, roomID)
	}
}

// isDirectInvite reports whether the invite's stripped state marks the
// bot's membership as is_direct.
func (b *Bot) isDirectInvite(invite messaging.InvitedRoom) bool {
	for _, event := range invite.InviteState.Events {
		if event.Type != "m.room.member" || event.StateKey == nil {
			continue
		}
		if *event.StateKey != b.session.UserID() {
			continue
		}
		direct, _ := event.Content["is_direct"].(bool)
		return direct
	}
	return false
}

// applyMemberEvent records a membership change from an m.room.member
// event. The state key is the affected user.
func (b *Bot) applyMemberEvent(roomID string, event messaging.Event) {
	if event.Type != "m.room.member" || event.StateKey == nil {
		return
	}
	membership, _ := event.Content["membership"].(string)
	if membership == "" {
		return
	}

	room, ok := b.rooms[roomID]
	if !ok {
		room = newRoomState()
		b.rooms[roomID] = room
	}
	room.memberships[*event.StateKey] = membership
}

// seedRoomMembers fetches the member list for a room the bot has no
// state for yet (fresh join, or a message arriving before the member
// state). A fetch failure leaves the room unclassified; it will be
// retried on the next message.
func (b *Bot) seedRoomMembers(ctx context.Context, roomID string) {
	members, err := b.session.GetRoomMembers(ctx, roomID)
	if err != nil {
		b.logger.Error("failed to fetch room members",
			"room_id", roomID,
			"error", err,
		)
		return
	}
	room := newRoomState()
	for _, member := range members {
		room.memberships[member.UserID] = member.Membership
	}
	b.rooms[roomID] = room
}

// isDirect reports whether a room is a direct conversation: exactly
// two joined members. Rooms with unknown membership are looked up
// once before deciding.
func (b *Bot) isDirect(ctx context.Context, roomID string) bool {
	room, ok := b.rooms[roomID]
	if !ok {
		b.seedRoomMembers(ctx, roomID)
		room, ok = b.rooms[roomID]
		if !ok {
			return false
		}
	}
	return room.joinedCount() == 2
}

// handleMessage runs one m.room.message event through the dispatcher
// and sends the reply, if any. Send failures are logged, not retried:
// the glossary mutation has already been persisted, and the user can
// re-ask.
func (b *Bot) handleMessage(ctx context.Context, roomID string, event messaging.Event) {
	body, _ := event.Content["body"].(string)

	inbound := glossary.Inbound{
		Text:   body,
		Author: b.resolveAuthor(ctx, event.Sender),
		Direct: b.isDirect(ctx, roomID),
		Self:   event.Sender == b.session.UserID(),
	}

	reply, ok := b.dispatcher.Dispatch(ctx, inbound)
	if !ok {
		return
	}

	if _, err := b.session.SendMessage(ctx, roomID, messaging.NewTextMessage(reply)); err != nil {
		b.logger.Error("failed to send reply",
			"room_id", roomID,
			"error", err,
		)
	}
}

// resolveAuthor derives the provenance identity recorded with new
// glossary values. Matrix does not expose account email addresses, so
// resolution starts from the user ID localpart, falls back to the
// profile display name, and finally to "unknown".
func (b *Bot) resolveAuthor(ctx context.Context, sender string) string {
	if localpart := userLocalpart(sender); localpart != "" {
		return localpart
	}

	if name, ok := b.displayNames[sender]; ok {
		if name != "" {
			return name
		}
		return "unknown"
	}

	name, err := b.session.GetDisplayName(ctx, sender)
	if err != nil {
		b.logger.Warn("display name lookup failed", "user_id", sender, "error", err)
		return "unknown"
	}
	b.displayNames[sender] = name
	if name == "" {
		return "unknown"
	}
	return name
}

// userLocalpart extracts the localpart from a Matrix user ID:
// "@alice:example.org" yields "alice". Returns "" for anything that
// does not look like a user ID.
func userLocalpart(userID string) string {
	if !strings.HasPrefix(userID, "@") {
		return ""
	}
	rest := userID[1:]
	colon := strings.IndexByte(rest, ':')
	if colon <= 0 {
		return ""
	}
	return rest[:colon]
}
