// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated Matrix identifier types: [RoomID],
// [UserID], [EventID], [EventType], and [MXCURI].
//
// Identifiers arrive from the homeserver (sync responses, send
// responses, member lists) and from local clients (socket commands,
// CLI flags). They are parsed into these types at the boundary and
// passed around as immutable values afterwards, so interior code never
// re-validates strings. The zero value of each type is not valid; use
// IsZero to check.
//
// All types implement encoding.TextMarshaler/TextUnmarshaler so they
// round-trip through JSON (and deterministic CBOR) as plain strings
// with validation on the way in.
package ref
