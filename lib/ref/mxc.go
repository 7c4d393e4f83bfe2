// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// MXCURI is a validated Matrix content URI
// (e.g., "mxc://example.org/GCmhgzMPRjqgpODLsNQzVuHZ").
//
// MXC URIs reference media stored in a homeserver's content
// repository: room avatars, member avatars, and message attachments.
// The URI carries the origin server name and an opaque media ID, the
// two values needed by the media download and thumbnail endpoints.
//
// MXCURI is an immutable value type. The zero value is not valid;
// use IsZero to check.
type MXCURI struct {
	server  string
	mediaID string
}

const mxcScheme = "mxc://"

// ParseMXCURI validates and splits a raw mxc:// URI.
func ParseMXCURI(raw string) (MXCURI, error) {
	if raw == "" {
		return MXCURI{}, fmt.Errorf("empty mxc URI")
	}
	if !strings.HasPrefix(raw, mxcScheme) {
		return MXCURI{}, fmt.Errorf("mxc URI must start with %q: %q", mxcScheme, raw)
	}
	rest := raw[len(mxcScheme):]
	slashIndex := strings.IndexByte(rest, '/')
	if slashIndex <= 0 {
		return MXCURI{}, fmt.Errorf("mxc URI missing server name: %q", raw)
	}
	server := rest[:slashIndex]
	mediaID := rest[slashIndex+1:]
	if mediaID == "" {
		return MXCURI{}, fmt.Errorf("mxc URI missing media ID: %q", raw)
	}
	if strings.ContainsAny(mediaID, "/?#") {
		return MXCURI{}, fmt.Errorf("mxc URI media ID contains path separators: %q", raw)
	}
	return MXCURI{server: server, mediaID: mediaID}, nil
}

// MustParseMXCURI is like ParseMXCURI but panics on error. Use in
// tests where the input is known-valid.
func MustParseMXCURI(raw string) MXCURI {
	m, err := ParseMXCURI(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseMXCURI(%q): %v", raw, err))
	}
	return m
}

// String returns the full URI (e.g., "mxc://example.org/abc123").
func (m MXCURI) String() string {
	if m.IsZero() {
		return ""
	}
	return mxcScheme + m.server + "/" + m.mediaID
}

// IsZero reports whether the MXCURI is the zero value (uninitialized).
func (m MXCURI) IsZero() bool { return m.server == "" && m.mediaID == "" }

// Server returns the origin server name.
func (m MXCURI) Server() string { return m.server }

// MediaID returns the opaque media identifier.
func (m MXCURI) MediaID() string { return m.mediaID }

// MarshalText implements encoding.TextMarshaler.
func (m MXCURI) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// URI format. An empty input produces the zero value (no media).
func (m *MXCURI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*m = MXCURI{}
		return nil
	}
	parsed, err := ParseMXCURI(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
