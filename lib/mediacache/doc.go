// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package mediacache provides a content-addressed store for decrypted
// Matrix media attachments.
//
// Encrypted attachments arrive in timeline events as an "file" object
// carrying an mxc:// reference plus the JWK key material needed to
// decrypt the ciphertext. The cache downloads the ciphertext once per
// content id, verifies its hash, decrypts it, and persists the
// plaintext at a deterministic path derived from the media reference.
// The presence of the file at that path is the only cache state; there
// is no index and no eviction.
//
// Concurrent Ensure calls for the same content id are collapsed into a
// single download so a burst of sync cycles referencing the same
// attachment fetches it exactly once.
package mediacache
