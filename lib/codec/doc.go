// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides mnotify's canonical CBOR encoding.
//
// mnotify uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: the Matrix Client-Server API and
//     the newline-delimited local socket protocol (commands in,
//     snapshots out).
//   - Deterministic CBOR for canonical serialization: the byte form of
//     a state snapshot that is hashed for change detection. The sync
//     driver publishes a new snapshot only when this canonical form
//     changes, so a serialization-stable encoding is load-bearing.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes.
//
// Types shared between the socket protocol and the canonical encoding
// carry only `json` struct tags; fxamacker/cbor reads them as fallback,
// so one tag controls field naming for both formats.
package codec
