// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/MatthiasGrandl/mnotify/lib/codec"
	"github.com/MatthiasGrandl/mnotify/lib/ref"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

// Member is one active room member as exposed to local clients.
type Member struct {
	UserID      ref.UserID `json:"user_id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name,omitempty"`
	Avatar      string     `json:"avatar"`
}

// Room is the outward-facing snapshot of a single room. Avatar is the
// resolved thumbnail URL, empty when the room has none. Events are the
// retained original message events, most recent last.
type Room struct {
	RoomID      ref.RoomID        `json:"room_id"`
	Name        string            `json:"name"`
	Avatar      string            `json:"avatar"`
	Members     []Member          `json:"members"`
	Events      []messaging.Event `json:"events"`
	UnreadCount int               `json:"unread_count"`
	IsDirect    bool              `json:"is_direct"`
}

// Document is the full visible room state at one point in time,
// ordered most recently active first. Room ids are unique within a
// Document.
type Document []Room

// Digest identifies a Document's canonical serialization. Documents
// with equal digests are equal for redistribution purposes.
type Digest [32]byte

// Encode serializes the document for broadcast. The wire form is a
// single newline-terminated JSON line; the digest is the BLAKE3 hash
// of the document's deterministic CBOR encoding, used solely for
// change detection.
func Encode(document Document) (wire []byte, digest Digest, err error) {
	wire, err = json.Marshal(document)
	if err != nil {
		return nil, Digest{}, fmt.Errorf("snapshot: encoding document: %w", err)
	}
	wire = append(wire, '\n')

	canonical, err := codec.Marshal(document)
	if err != nil {
		return nil, Digest{}, fmt.Errorf("snapshot: canonical encoding: %w", err)
	}
	return wire, blake3.Sum256(canonical), nil
}
