// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed is the daemon's fan-out core.
//
// The Driver consumes the upstream sync stream, folds each response
// into the snapshot tracker, and publishes the encoded document to a
// single-slot broadcast channel whenever its canonical digest changes.
// It is the channel's only writer.
//
// The Server listens on the local unix socket. Every accepted
// connection gets two independent loops: a read loop that decodes and
// dispatches inbound command lines, and a write loop that polls a
// private channel subscriber and writes each fresh snapshot line to
// the client. One connection's failure or slowness never affects the
// others or the publisher.
package feed
