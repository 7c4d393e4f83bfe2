// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API for mnotify.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client that handles login, returning authenticated [Session]
// values. Client holds the homeserver URL and HTTP transport, shared
// across all Sessions derived from it.
//
// [Session] wraps a Client with an access token for authenticated
// operations: sending messages (plain text and rich replies), event
// redaction, typing notifications, state event reads, room member
// listing, incremental sync with long-polling, media upload and
// download, and identity verification (WhoAmI). The access token lives
// in mmap-backed secret.Buffer memory, locked against swap and excluded
// from core dumps; callers must call Session.Close to release it.
//
// [SyncStream] layers a cursor over Session.Sync: it owns the
// next_batch token, long-polls with a bounded retry policy, and builds
// the sync filter (timeline limit, presence/account-data scoping).
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, etc.) and HTTP status
// code. [IsMatrixError] tests for a specific error code. Request URLs
// are built by string concatenation rather than url.URL to avoid
// double-encoding of path segments that contain URL-encoded characters.
package messaging
