// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MatthiasGrandl/mnotify/lib/mediacache"
	"github.com/MatthiasGrandl/mnotify/lib/ref"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

// defaultTimelineLimit bounds the retained message events per room
// when TrackerConfig leaves TimelineLimit unset.
const defaultTimelineLimit = 10

// Directory resolves the parts of a room snapshot that are not carried
// by the sync stream itself: the active member list and fetchable
// avatar URLs. Implemented over messaging.Session by the daemon.
type Directory interface {
	// RoomMembers returns the room's member list, all membership
	// states included.
	RoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error)

	// AvatarThumbnailURL resolves an mxc:// avatar reference to a
	// fetchable thumbnail URL. Empty or unresolvable input yields "".
	AvatarThumbnailURL(avatarURL string) string
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// UserID is the account the daemon syncs as. Used to leave the
	// own user out of direct-chat display names.
	UserID ref.UserID

	// TimelineLimit caps the message events retained per room. Zero
	// uses a default of 10.
	TimelineLimit int

	// Logger is used for per-event drop logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Tracker accumulates /sync responses into per-room state. It is not
// safe for concurrent use; the sync driver owns it.
type Tracker struct {
	self   ref.UserID
	limit  int
	logger *slog.Logger

	rooms  map[ref.RoomID]*roomState
	direct map[ref.RoomID]bool
}

type roomState struct {
	name         string
	avatarMXC    string
	events       []messaging.Event
	unread       int
	lastActivity int64
}

// NewTracker creates an empty Tracker.
func NewTracker(config TrackerConfig) *Tracker {
	limit := config.TimelineLimit
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		self:   config.UserID,
		limit:  limit,
		logger: logger,
		rooms:  make(map[ref.RoomID]*roomState),
		direct: make(map[ref.RoomID]bool),
	}
}

// Apply folds one sync response into the tracked state and returns the
// encrypted attachments referenced by newly retained message events,
// for the caller to cache in the background.
func (t *Tracker) Apply(response *messaging.SyncResponse) []*mediacache.EncryptedFile {
	if response == nil {
		return nil
	}

	t.applyDirectMarkers(response.AccountData)

	for roomID := range response.Rooms.Leave {
		delete(t.rooms, roomID)
		delete(t.direct, roomID)
	}

	var attachments []*mediacache.EncryptedFile
	for roomID, joined := range response.Rooms.Join {
		state, ok := t.rooms[roomID]
		if !ok {
			state = &roomState{}
			t.rooms[roomID] = state
		}

		for _, event := range joined.State.Events {
			state.applyStateEvent(event)
		}
		for _, event := range joined.Timeline.Events {
			if event.OriginServerTS > state.lastActivity {
				state.lastActivity = event.OriginServerTS
			}
			if event.StateKey != nil {
				state.applyStateEvent(event)
				continue
			}
			if event.Type != ref.EventTypeMessage {
				continue
			}
			if !isOriginalMessage(event) {
				t.logger.Debug("dropping non-original message event",
					"room_id", roomID,
					"event_id", event.EventID,
				)
				continue
			}
			state.appendEvent(event, t.limit)
			if file, ok := mediacache.ParseEncryptedFile(event.Content); ok {
				attachments = append(attachments, file)
			}
		}

		// A delta that omits the counters is not a reset to zero.
		if joined.UnreadNotifications != nil {
			state.unread = joined.UnreadNotifications.NotificationCount
		}
	}

	return attachments
}

// applyDirectMarkers rebuilds the direct-room set from an m.direct
// account data event. m.direct maps each peer user to the rooms shared
// with them; the event replaces the whole mapping.
func (t *Tracker) applyDirectMarkers(accountData messaging.StateSection) {
	for _, event := range accountData.Events {
		if event.Type != ref.EventTypeDirect {
			continue
		}
		t.direct = make(map[ref.RoomID]bool)
		for _, rooms := range event.Content {
			list, ok := rooms.([]any)
			if !ok {
				continue
			}
			for _, entry := range list {
				raw, ok := entry.(string)
				if !ok {
					continue
				}
				roomID, err := ref.ParseRoomID(raw)
				if err != nil {
					continue
				}
				t.direct[roomID] = true
			}
		}
	}
}

func (state *roomState) applyStateEvent(event messaging.Event) {
	switch event.Type {
	case ref.EventTypeName:
		if name, ok := event.Content["name"].(string); ok {
			state.name = name
		}
	case ref.EventTypeAvatar:
		if url, ok := event.Content["url"].(string); ok {
			state.avatarMXC = url
		}
	}
}

func (state *roomState) appendEvent(event messaging.Event, limit int) {
	state.events = append(state.events, event)
	if len(state.events) > limit {
		state.events = state.events[len(state.events)-limit:]
	}
}

// isOriginalMessage reports whether a message event should appear in
// the outward snapshot: redacted events (pruned content) and edit
// events (m.replace relations or m.new_content payloads) are dropped
// so clients only ever see each message once, in its original form.
func isOriginalMessage(event messaging.Event) bool {
	if len(event.Content) == 0 {
		return false
	}
	if _, ok := event.Content["msgtype"]; !ok {
		return false
	}
	if _, ok := event.Content["m.new_content"]; ok {
		return false
	}
	if relates, ok := event.Content["m.relates_to"].(map[string]any); ok {
		if relType, ok := relates["rel_type"].(string); ok && relType == "m.replace" {
			return false
		}
	}
	return true
}

// BuildDocument resolves the tracked state into a broadcast-ready
// Document, most recently active room first. A member lookup failure
// aborts the whole document; the caller skips the cycle and retries on
// the next sync.
func (t *Tracker) BuildDocument(ctx context.Context, directory Directory) (Document, error) {
	roomIDs := make([]ref.RoomID, 0, len(t.rooms))
	for roomID := range t.rooms {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Slice(roomIDs, func(i, j int) bool {
		a, b := t.rooms[roomIDs[i]], t.rooms[roomIDs[j]]
		if a.lastActivity != b.lastActivity {
			return a.lastActivity > b.lastActivity
		}
		return roomIDs[i].String() < roomIDs[j].String()
	})

	document := make(Document, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		state := t.rooms[roomID]

		roomMembers, err := directory.RoomMembers(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("snapshot: fetching members of %s: %w", roomID, err)
		}
		members := make([]Member, 0, len(roomMembers))
		for _, member := range roomMembers {
			if member.Membership != "join" {
				continue
			}
			members = append(members, Member{
				UserID:      member.UserID,
				Name:        member.UserID.Localpart(),
				DisplayName: member.DisplayName,
				Avatar:      directory.AvatarThumbnailURL(member.AvatarURL),
			})
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].UserID.String() < members[j].UserID.String()
		})

		document = append(document, Room{
			RoomID:      roomID,
			Name:        t.roomName(roomID, state, members),
			Avatar:      t.roomAvatar(roomID, directory.AvatarThumbnailURL(state.avatarMXC), members),
			Members:     members,
			Events:      append(make([]messaging.Event, 0, len(state.events)), state.events...),
			UnreadCount: state.unread,
			IsDirect:    t.direct[roomID],
		})
	}
	return document, nil
}

// roomName prefers the explicit m.room.name state; unnamed rooms fall
// back to the other members' names, which is how direct chats usually
// present.
func (t *Tracker) roomName(roomID ref.RoomID, state *roomState, members []Member) string {
	if state.name != "" {
		return state.name
	}
	var names []string
	for _, member := range members {
		if member.UserID == t.self {
			continue
		}
		name := member.DisplayName
		if name == "" {
			name = member.Name
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return roomID.String()
	}
	return strings.Join(names, ", ")
}

// roomAvatar prefers the room's own avatar; a direct chat without one
// borrows the peer's.
func (t *Tracker) roomAvatar(roomID ref.RoomID, roomAvatarURL string, members []Member) string {
	if roomAvatarURL != "" {
		return roomAvatarURL
	}
	if !t.direct[roomID] {
		return ""
	}
	for _, member := range members {
		if member.UserID == t.self {
			continue
		}
		if member.Avatar != "" {
			return member.Avatar
		}
	}
	return ""
}
