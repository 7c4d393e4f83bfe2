// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Command mnotify exposes a Matrix account's live room state to local
// processes over a unix socket and relays their commands back to the
// homeserver.
//
// The serve subcommand runs the daemon; login, logout, whoami,
// homeserver, and clean manage the stored session and local state;
// send, redact, and typing act on the account directly; tail is a
// reference client for the socket stream.
package main
