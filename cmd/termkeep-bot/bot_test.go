// Copyright 2026 The Termkeep Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/termkeep/termkeep/lib/clock"
	"github.com/termkeep/termkeep/lib/glossary"
	"github.com/termkeep/termkeep/messaging"
)

const (
	botUserID   = "@keeper:example.org"
	aliceUserID = "@alice:example.org"
	directRoom  = "!direct:example.org"
	groupRoom   = "!group:example.org"
)

// sentMessage records one SendMessage call on the fake session.
type sentMessage struct {
	RoomID string
	Body   string
}

// fakeSession is an in-memory messaging.Session. Sync responses are
// scripted through the syncResponses channel; everything else is
// served from the configured maps.
type fakeSession struct {
	mu sync.Mutex

	userID        string
	members       map[string][]messaging.RoomMember
	displayNames  map[string]string
	sent          []sentMessage
	joined        []string
	left          []string
	syncResponses chan *messaging.SyncResponse
	syncErr       error
	sendErr       error
	memberErr     error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		userID:        botUserID,
		members:       make(map[string][]messaging.RoomMember),
		displayNames:  make(map[string]string),
		syncResponses: make(chan *messaging.SyncResponse, 16),
	}
}

func (s *fakeSession) UserID() string { return s.userID }

func (s *fakeSession) WhoAmI(ctx context.Context) (string, error) { return s.userID, nil }

func (s *fakeSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	s.mu.Lock()
	err := s.syncErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	select {
	case response := <-s.syncResponses:
		return response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSession) SendMessage(ctx context.Context, roomID string, content messaging.MessageContent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, sentMessage{RoomID: roomID, Body: content.Body})
	return "$sent", nil
}

func (s *fakeSession) JoinRoom(ctx context.Context, roomID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, roomID)
	return roomID, nil
}

func (s *fakeSession) LeaveRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, roomID)
	return nil
}

func (s *fakeSession) GetRoomMembers(ctx context.Context, roomID string) ([]messaging.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberErr != nil {
		return nil, s.memberErr
	}
	return s.members[roomID], nil
}

func (s *fakeSession) GetDisplayName(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayNames[userID], nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

var _ messaging.Session = (*fakeSession)(nil)

// memoryBackend is a map-backed glossary.Backend for bot-level tests.
type memoryBackend struct {
	entries map[string][]glossary.Value
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string][]glossary.Value)}
}

func (b *memoryBackend) ReadEntry(ctx context.Context, key string) ([]glossary.Value, bool, error) {
	values, ok := b.entries[key]
	return values, ok, nil
}

func (b *memoryBackend) ReplaceEntry(ctx context.Context, key string, values []glossary.Value) error {
	b.entries[key] = values
	return nil
}

func (b *memoryBackend) DeleteEntry(ctx context.Context, key string) (bool, error) {
	_, ok := b.entries[key]
	delete(b.entries, key)
	return ok, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBot builds a Bot over a fake session and in-memory storage.
func newTestBot(t *testing.T, session *fakeSession) (*Bot, *memoryBackend) {
	t.Helper()
	backend := newMemoryBackend()
	store := glossary.NewStore(backend, clock.Fake(time.Date(2026, 7, 1, 12, 30, 0, 0, time.UTC)), testLogger())
	dispatcher := glossary.NewDispatcher(store, testLogger())
	return NewBot(session, dispatcher, testLogger()), backend
}

// stateKey returns a pointer for use in member event literals.
func stateKey(userID string) *string { return &userID }

func memberEvent(userID, membership string) messaging.Event {
	return messaging.Event{
		Type:     "m.room.member",
		Sender:   userID,
		StateKey: stateKey(userID),
		Content:  map[string]any{"membership": membership},
	}
}

func messageEvent(sender, body string) messaging.Event {
	return messaging.Event{
		Type:    "m.room.message",
		Sender:  sender,
		Content: map[string]any{"msgtype": "m.text", "body": body},
	}
}

// inviteRoom builds the stripped invite state for an invite to the
// bot, flagged direct or not.
func inviteRoom(direct bool) messaging.InvitedRoom {
	return messaging.InvitedRoom{
		InviteState: messaging.StateSection{
			Events: []messaging.Event{
				{
					Type:     "m.room.member",
					Sender:   aliceUserID,
					StateKey: stateKey(botUserID),
					Content:  map[string]any{"membership": "invite", "is_direct": direct},
				},
			},
		},
	}
}

// directRoomResponse builds a sync response for a two-member room with
// the given timeline events.
func directRoomResponse(roomID string, events ...messaging.Event) *messaging.SyncResponse {
	return &messaging.SyncResponse{
		NextBatch: "batch",
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				roomID: {
					State: messaging.StateSection{
						Events: []messaging.Event{
							memberEvent(botUserID, "join"),
							memberEvent(aliceUserID, "join"),
						},
					},
					Timeline: messaging.TimelineSection{Events: events},
				},
			},
		},
	}
}

func TestDirectMessageGetsReply(t *testing.T) {
	session := newFakeSession()
	bot, _ := newTestBot(t, session)

	bot.HandleSync(context.Background(), directRoomResponse(directRoom,
		messageEvent(aliceUserID, "!add API: REST"),
	))

	sent := session.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	if sent[0].RoomID != directRoom {
		t.Errorf("reply went to %s", sent[0].RoomID)
	}
	if sent[0].Body != `Added value "REST" to key "API".` {
		t.Errorf("unexpected reply: %q", sent[0].Body)
	}
}

func TestGroupRoomIgnored(t *testing.T) {
	session := newFakeSession()
	bot, backend := newTestBot(t, session)

	response := &messaging.SyncResponse{
		NextBatch: "batch",
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				groupRoom: {
					State: messaging.StateSection{
						Events: []messaging.Event{
							memberEvent(botUserID, "join"),
							memberEvent(aliceUserID, "join"),
							memberEvent("@bob:example.org", "join"),
						},
					},
					Timeline: messaging.TimelineSection{
						Events: []messaging.Event{messageEvent(aliceUserID, "!add API: REST")},
					},
				},
			},
		},
	}
	bot.HandleSync(context.Background(), response)

	if len(session.sentMessages()) != 0 {
		t.Error("bot replied in a group room")
	}
	if len(backend.entries) != 0 {
		t.Error("group room message mutated the glossary")
	}
}

func TestOwnMessagesIgnored(t *testing.T) {
	session := newFakeSession()
	bot, backend := newTestBot(t, session)

	bot.HandleSync(context.Background(), directRoomResponse(directRoom,
		messageEvent(botUserID, "!add API: REST"),
	))

	if len(session.sentMessages()) != 0 {
		t.Error("bot replied to its own message")
	}
	if len(backend.entries) != 0 {
		t.Error("own message mutated the glossary")
	}
}

func TestMemberLeaveReclassifiesRoom(t *testing.T) {
	session := newFakeSession()
	bot, _ := newTestBot(t, session)

	// Third member present: no reply.
	bot.HandleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				directRoom: {
					State: messaging.StateSection{
						Events: []messaging.Event{
							memberEvent(botUserID, "join"),
							memberEvent(aliceUserID, "join"),
							memberEvent("@bob:example.org", "join"),
						},
					},
					Timeline: messaging.TimelineSection{
						Events: []messaging.Event{messageEvent(aliceUserID, "API")},
					},
				},
			},
		},
	})
	if len(session.sentMessages()) != 0 {
		t.Fatal("bot replied while room had three members")
	}

	// Bob leaves; the same room becomes direct.
	bot.HandleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				directRoom: {
					Timeline: messaging.TimelineSection{
						Events: []messaging.Event{
							memberEvent("@bob:example.org", "leave"),
							messageEvent(aliceUserID, "API"),
						},
					},
				},
			},
		},
	})
	sent := session.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply after room became direct, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, `No entry for "API"`) {
		t.Errorf("unexpected reply: %q", sent[0].Body)
	}
}

func TestUnknownRoomMembershipFetched(t *testing.T) {
	session := newFakeSession()
	session.members[directRoom] = []messaging.RoomMember{
		{UserID: botUserID, Membership: "join"},
		{UserID: aliceUserID, Membership: "join"},
	}
	bot, _ := newTestBot(t, session)

	// Message arrives with no prior member state for the room.
	bot.HandleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				directRoom: {
					Timeline: messaging.TimelineSection{
						Events: []messaging.Event{messageEvent(aliceUserID, "!help")},
					},
				},
			},
		},
	})

	if len(session.sentMessages()) != 1 {
		t.Fatal("expected help reply after membership fetch")
	}
}

func TestMemberFetchFailureDropsMessage(t *testing.T) {
	session := newFakeSession()
	session.memberErr = errors.New("members unavailable")
	bot, backend := newTestBot(t, session)

	bot.HandleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Join: map[string]messaging.JoinedRoom{
				directRoom: {
					Timeline: messaging.TimelineSection{
						Events: []messaging.Event{messageEvent(aliceUserID, "!add API: REST")},
					},
				},
			},
		},
	})

	if len(session.sentMessages()) != 0 {
		t.Error("bot replied in an unclassifiable room")
	}
	if len(backend.entries) != 0 {
		t.Error("unclassifiable room message mutated the glossary")
	}
}

func TestInviteAccepted(t *testing.T) {
	session := newFakeSession()
	session.members[directRoom] = []messaging.RoomMember{
		{UserID: botUserID, Membership: "join"},
		{UserID: aliceUserID, Membership: "join"},
	}
	bot, _ := newTestBot(t, session)

	bot.HandleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Invite: map[string]messaging.InvitedRoom{
				directRoom: inviteRoom(true),
			},
		},
	})

	if len(session.joined) != 1 || session.joined[0] != directRoom {
		t.Fatalf("expected join of %s, got %v", directRoom, session.joined)
	}
	if len(session.left) != 0 {
		t.Errorf("direct invite was declined: %v", session.left)
	}
	// Membership was seeded from the member fetch after joining.
	if !bot.isDirect(context.Background(), directRoom) {
		t.Error("joined room not classified as direct")
	}
}

func TestGroupInviteDeclined(t *testing.T) {
	session := newFakeSession()
	bot, _ := newTestBot(t, session)

	// One invite without the is_direct flag, one with no member event
	// for the bot at all. Neither should be joined.
	bot.HandleSync(context.Background(), &messaging.SyncResponse{
		Rooms: messaging.RoomsSection{
			Invite: map[string]messaging.InvitedRoom{
				groupRoom:           inviteRoom(false),
				"!bare:example.org": {},
			},
		},
	})

	if len(session.joined) != 0 {
		t.Errorf("bot joined non-direct rooms: %v", session.joined)
	}
	if len(session.left) != 2 {
		t.Errorf("expected 2 declined invites, got %v", session.left)
	}
}

func TestInitialSyncDoesNotAnswerBacklog(t *testing.T) {
	session := newFakeSession()
	bot, _ := newTestBot(t, session)

	session.syncResponses <- directRoomResponse(directRoom,
		messageEvent(aliceUserID, "!add API: REST"),
	)

	sinceToken, err := bot.InitialSync(context.Background())
	if err != nil {
		t.Fatalf("InitialSync failed: %v", err)
	}
	if sinceToken != "batch" {
		t.Errorf("unexpected since token: %q", sinceToken)
	}
	if len(session.sentMessages()) != 0 {
		t.Error("initial sync replied to backlog messages")
	}
	// Membership from the snapshot is retained.
	if !bot.isDirect(context.Background(), directRoom) {
		t.Error("membership state not built from initial sync")
	}
}

func TestSendFailureLoggedNotFatal(t *testing.T) {
	session := newFakeSession()
	session.sendErr = errors.New("homeserver unavailable")
	bot, backend := newTestBot(t, session)

	bot.HandleSync(context.Background(), directRoomResponse(directRoom,
		messageEvent(aliceUserID, "!add API: REST"),
	))

	// The mutation persisted under the normalized key even though the
	// confirmation was lost.
	if len(backend.entries["api"]) != 1 {
		t.Error("glossary mutation lost on send failure")
	}
}

func TestResolveAuthor(t *testing.T) {
	session := newFakeSession()
	session.displayNames["weird"] = "Weird One"
	bot, _ := newTestBot(t, session)
	ctx := context.Background()

	tests := []struct {
		name   string
		sender string
		want   string
	}{
		{"localpart", "@carol:example.org", "carol"},
		{"display name fallback", "weird", "Weird One"},
		{"unknown", "nameless", "unknown"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := bot.resolveAuthor(ctx, test.sender); got != test.want {
				t.Errorf("resolveAuthor(%q) = %q, want %q", test.sender, got, test.want)
			}
		})
	}
}

func TestUserLocalpart(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"@alice:example.org", "alice"},
		{"@bot/keeper:example.org", "bot/keeper"},
		{"alice:example.org", ""},
		{"@:example.org", ""},
		{"@alice", ""},
	}
	for _, test := range tests {
		if got := userLocalpart(test.input); got != test.want {
			t.Errorf("userLocalpart(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}
