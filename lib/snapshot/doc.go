// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot builds the canonical room-state documents broadcast
// over the local socket.
//
// A Tracker accumulates /sync responses into per-room state: display
// name, avatar, a bounded message timeline, unread counters, and
// direct-chat markers. BuildDocument resolves the tracked state into a
// Document, an ordered list of Room values ready for the wire.
//
// Encode serializes a Document two ways at once: the newline-delimited
// JSON line that goes to connected clients, and a BLAKE3 digest of the
// document's deterministic CBOR encoding. Two documents are "the same"
// exactly when their digests match; the publisher uses this to
// suppress redundant broadcasts.
package snapshot
