// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package command decodes inbound socket lines into commands and
// dispatches them against the messaging backend.
//
// Each line of input maps to exactly one Command variant, selected by
// the "type" discriminant: "send" posts a message (optionally as a
// reply), "file" uploads a local file as an attachment, "subscribe"
// registers interest in a room's full timeline. A malformed line
// yields a DecodeError and is dropped; it never terminates the
// connection that sent it.
//
// Dispatch is fire and forget: each command runs as a detached
// goroutine whose outcome is only logged, bounded by a concurrency
// limit and drained on Close. No ordering is guaranteed across lines.
package command
