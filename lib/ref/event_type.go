// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix state or timeline event type
// (e.g., "m.room.message", "m.room.name").
//
// EventType is a named string type, not a struct wrapper: event types
// are opaque identifiers that need no parsing or validation. The type
// exists purely for compile-time safety — preventing accidental use of
// a state key where an event type is expected (or vice versa).
type EventType string

// Event types mnotify inspects. Everything else passes through opaque.
const (
	EventTypeMessage EventType = "m.room.message"
	EventTypeName    EventType = "m.room.name"
	EventTypeAvatar  EventType = "m.room.avatar"
	EventTypeMember  EventType = "m.room.member"
	EventTypeDirect  EventType = "m.direct"
)

// String returns the event type string (e.g., "m.room.message").
func (t EventType) String() string { return string(t) }
