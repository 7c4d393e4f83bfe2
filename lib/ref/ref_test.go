// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseRoomID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "valid simple",
			input: "!abc123:example.org",
		},
		{
			name:  "valid with port in server",
			input: "!opaque:localhost:8008",
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: "empty room ID",
		},
		{
			name:    "missing bang prefix",
			input:   "abc123:example.org",
			wantErr: "must start with '!'",
		},
		{
			name:    "missing colon and server",
			input:   "!abc123",
			wantErr: "missing ':server' suffix",
		},
		{
			name:    "empty local part",
			input:   "!:example.org",
			wantErr: "empty local part",
		},
		{
			name:    "empty server name",
			input:   "!abc123:",
			wantErr: "empty server name",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			roomID, err := ParseRoomID(test.input)
			if test.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseRoomID(%q) succeeded, want error containing %q", test.input, test.wantErr)
				}
				if !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("ParseRoomID(%q) error = %q, want error containing %q", test.input, err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRoomID(%q) unexpected error: %v", test.input, err)
			}
			if roomID.String() != test.input {
				t.Errorf("String() = %q, want %q", roomID.String(), test.input)
			}
			if roomID.IsZero() {
				t.Error("IsZero() = true for valid RoomID")
			}
		})
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:  "valid",
			input: "@alice:example.org",
		},
		{
			name:  "valid with port",
			input: "@bob:localhost:8008",
		},
		{
			name:    "missing sigil",
			input:   "alice:example.org",
			wantErr: "must start with @",
		},
		{
			name:    "missing server",
			input:   "@alice",
			wantErr: "missing :server",
		},
		{
			name:    "empty localpart",
			input:   "@:example.org",
			wantErr: "empty localpart",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			userID, err := ParseUserID(test.input)
			if test.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseUserID(%q) succeeded, want error containing %q", test.input, test.wantErr)
				}
				if !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("ParseUserID(%q) error = %q, want error containing %q", test.input, err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUserID(%q) unexpected error: %v", test.input, err)
			}
			if userID.String() != test.input {
				t.Errorf("String() = %q, want %q", userID.String(), test.input)
			}
		})
	}
}

func TestUserIDParts(t *testing.T) {
	userID := MustParseUserID("@alice:example.org")
	if got := userID.Localpart(); got != "alice" {
		t.Errorf("Localpart() = %q, want %q", got, "alice")
	}
	if got := userID.Server(); got != "example.org" {
		t.Errorf("Server() = %q, want %q", got, "example.org")
	}
}

func TestParseEventID(t *testing.T) {
	if _, err := ParseEventID("$abc123"); err != nil {
		t.Fatalf("ParseEventID($abc123) unexpected error: %v", err)
	}
	if _, err := ParseEventID("abc123"); err == nil {
		t.Fatal("ParseEventID(abc123) succeeded, want sigil error")
	}
	if _, err := ParseEventID("$"); err == nil {
		t.Fatal("ParseEventID($) succeeded, want empty-body error")
	}
	if _, err := ParseEventID(""); err == nil {
		t.Fatal("ParseEventID(\"\") succeeded, want error")
	}
}

func TestParseMXCURI(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantServer  string
		wantMediaID string
		wantErr     string
	}{
		{
			name:        "valid",
			input:       "mxc://example.org/GCmhgzMPRjqgpODLs",
			wantServer:  "example.org",
			wantMediaID: "GCmhgzMPRjqgpODLs",
		},
		{
			name:    "empty",
			input:   "",
			wantErr: "empty mxc URI",
		},
		{
			name:    "wrong scheme",
			input:   "https://example.org/abc",
			wantErr: "must start with",
		},
		{
			name:    "missing media id",
			input:   "mxc://example.org/",
			wantErr: "missing media ID",
		},
		{
			name:    "missing server",
			input:   "mxc:///abc",
			wantErr: "missing server name",
		},
		{
			name:    "media id with slash",
			input:   "mxc://example.org/a/b",
			wantErr: "path separators",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			uri, err := ParseMXCURI(test.input)
			if test.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseMXCURI(%q) succeeded, want error containing %q", test.input, test.wantErr)
				}
				if !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("ParseMXCURI(%q) error = %q, want error containing %q", test.input, err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMXCURI(%q) unexpected error: %v", test.input, err)
			}
			if uri.Server() != test.wantServer {
				t.Errorf("Server() = %q, want %q", uri.Server(), test.wantServer)
			}
			if uri.MediaID() != test.wantMediaID {
				t.Errorf("MediaID() = %q, want %q", uri.MediaID(), test.wantMediaID)
			}
			if uri.String() != test.input {
				t.Errorf("String() = %q, want %q", uri.String(), test.input)
			}
		})
	}
}

func TestIdentifierJSONRoundTrip(t *testing.T) {
	type payload struct {
		Room  RoomID  `json:"room_id"`
		User  UserID  `json:"user_id"`
		Event EventID `json:"event_id,omitempty"`
		Media MXCURI  `json:"url,omitempty"`
	}
	original := payload{
		Room:  MustParseRoomID("!a:example.org"),
		User:  MustParseUserID("@alice:example.org"),
		Event: MustParseEventID("$evt1"),
		Media: MustParseMXCURI("mxc://example.org/abc"),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}

	// Empty event ID and media URL decode to the zero value.
	var partial payload
	if err := json.Unmarshal([]byte(`{"room_id":"!a:x.org","user_id":"@b:x.org","event_id":"","url":""}`), &partial); err != nil {
		t.Fatalf("unmarshal with empty optionals: %v", err)
	}
	if !partial.Event.IsZero() || !partial.Media.IsZero() {
		t.Errorf("empty optionals did not decode to zero values: %+v", partial)
	}

	// Invalid identifiers are rejected at decode time.
	if err := json.Unmarshal([]byte(`{"room_id":"not-a-room"}`), &partial); err == nil {
		t.Error("decoding invalid room ID succeeded, want error")
	}
}
