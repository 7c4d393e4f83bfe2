// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
)

// Command is one decoded client instruction. The concrete type is one
// of Send, Attach, or Subscribe. Commands are immutable once decoded.
type Command interface {
	isCommand()
}

// Send posts a text message to a room, as a rich reply when ReplyTo
// is set.
type Send struct {
	RoomID  ref.RoomID
	ReplyTo ref.EventID
	Text    string
}

// Attach uploads the file at Path and posts it to a room.
type Attach struct {
	RoomID ref.RoomID
	Path   string
}

// Subscribe registers interest in a room, widening the timeline the
// sync stream requests for it.
type Subscribe struct {
	RoomID ref.RoomID
}

func (Send) isCommand()      {}
func (Attach) isCommand()    {}
func (Subscribe) isCommand() {}

// DecodeError reports a line that could not be decoded into a
// Command. The line is discarded; the connection carries on.
type DecodeError struct {
	reason string
	err    error
}

func (e *DecodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("command: %s: %v", e.reason, e.err)
	}
	return "command: " + e.reason
}

func (e *DecodeError) Unwrap() error { return e.err }

// IsDecodeError reports whether err is a per-line decode failure, as
// opposed to a dispatch or transport error.
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// envelope is the wire shape shared by all command variants.
type envelope struct {
	Type    string  `json:"type"`
	RoomID  string  `json:"room_id"`
	ReplyTo *string `json:"reply_to"`
	Message string  `json:"message"`
	Path    string  `json:"path"`
}

// Decode parses one line of input into a Command. Any malformed or
// unrecognized line yields a *DecodeError.
func Decode(line []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &DecodeError{reason: "malformed line", err: err}
	}

	roomID, err := ref.ParseRoomID(env.RoomID)
	if err != nil {
		return nil, &DecodeError{reason: "invalid room_id", err: err}
	}

	switch env.Type {
	case "send":
		if env.Message == "" {
			return nil, &DecodeError{reason: "send without message"}
		}
		send := Send{RoomID: roomID, Text: env.Message}
		if env.ReplyTo != nil && *env.ReplyTo != "" {
			replyTo, err := ref.ParseEventID(*env.ReplyTo)
			if err != nil {
				return nil, &DecodeError{reason: "invalid reply_to", err: err}
			}
			send.ReplyTo = replyTo
		}
		return send, nil

	case "file", "attachment", "upload":
		if env.Path == "" {
			return nil, &DecodeError{reason: "file without path"}
		}
		return Attach{RoomID: roomID, Path: env.Path}, nil

	case "subscribe":
		return Subscribe{RoomID: roomID}, nil

	default:
		return nil, &DecodeError{reason: fmt.Sprintf("unknown command type %q", env.Type)}
	}
}
