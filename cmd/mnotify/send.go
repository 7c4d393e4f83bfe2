// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/MatthiasGrandl/mnotify/lib/cli"
	"github.com/MatthiasGrandl/mnotify/lib/ref"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

func sendCommand() *cli.Command {
	var room string
	var replyTo string
	var filePath string

	return &cli.Command{
		Name:    "send",
		Summary: "Send a message or file to a room",
		Usage:   "mnotify send --room <room-id> [flags] [message]",
		Description: `Send a text message or upload a file to a room, using the stored
session directly (no running daemon required).

The message is taken from the arguments, or from stdin when none are
given. With --file, the file is uploaded and posted as an attachment
instead.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
			flags.StringVar(&room, "room", "", "room id to send to (required)")
			flags.StringVar(&replyTo, "reply-to", "", "event id to reply to")
			flags.StringVar(&filePath, "file", "", "upload this file as an attachment")
			return flags
		},
		Run: func(args []string) error {
			roomID, err := ref.ParseRoomID(room)
			if err != nil {
				return fmt.Errorf("--room: %w", err)
			}
			_, session, err := openSession()
			if err != nil {
				return err
			}
			defer session.Close()

			ctx := context.Background()

			if filePath != "" {
				if len(args) > 0 {
					return fmt.Errorf("--file and a message are mutually exclusive")
				}
				eventID, err := sendAttachment(ctx, session, roomID, filePath)
				if err != nil {
					return err
				}
				fmt.Println(eventID)
				return nil
			}

			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading message from stdin: %w", err)
				}
				text = strings.TrimRight(string(data), "\n")
			}
			if text == "" {
				return fmt.Errorf("empty message")
			}

			content := messaging.NewTextMessage(text)
			if replyTo != "" {
				replyToID, err := ref.ParseEventID(replyTo)
				if err != nil {
					return fmt.Errorf("--reply-to: %w", err)
				}
				content = messaging.NewReply(replyToID, text)
			}

			eventID, err := session.SendMessage(ctx, roomID, content)
			if err != nil {
				return err
			}
			fmt.Println(eventID)
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Send a plain message",
				Command:     "mnotify send --room '!ops:example.org' 'deploy finished'",
			},
			{
				Description: "Reply to an event",
				Command:     "mnotify send --room '!ops:example.org' --reply-to '$event' 'on it'",
			},
			{
				Description: "Upload a file",
				Command:     "mnotify send --room '!ops:example.org' --file ./report.pdf",
			},
		},
	}
}

// sendAttachment uploads a local file and posts it as a message. The
// message type follows the detected mime type so clients render
// images, audio, and video inline.
func sendAttachment(ctx context.Context, session *messaging.Session, roomID ref.RoomID, path string) (ref.EventID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("reading %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	contentURI, err := session.UploadMedia(ctx, contentType, bytes.NewReader(data))
	if err != nil {
		return ref.EventID{}, err
	}

	filename := filepath.Base(path)
	content := messaging.NewAttachment(messageTypeFor(contentType), filename, contentURI.String(), &messaging.FileInfo{
		MimeType: contentType,
		Size:     int64(len(data)),
	})
	return session.SendMessage(ctx, roomID, content)
}

func messageTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "m.image"
	case strings.HasPrefix(contentType, "video/"):
		return "m.video"
	case strings.HasPrefix(contentType, "audio/"):
		return "m.audio"
	default:
		return "m.file"
	}
}

func redactCommand() *cli.Command {
	var room string
	var event string
	var reason string

	return &cli.Command{
		Name:    "redact",
		Summary: "Redact an event",
		Usage:   "mnotify redact --room <room-id> --event <event-id> [--reason ...]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("redact", pflag.ContinueOnError)
			flags.StringVar(&room, "room", "", "room id (required)")
			flags.StringVar(&event, "event", "", "event id to redact (required)")
			flags.StringVar(&reason, "reason", "", "redaction reason")
			return flags
		},
		Run: func(args []string) error {
			roomID, err := ref.ParseRoomID(room)
			if err != nil {
				return fmt.Errorf("--room: %w", err)
			}
			eventID, err := ref.ParseEventID(event)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			_, session, err := openSession()
			if err != nil {
				return err
			}
			defer session.Close()

			redactionID, err := session.RedactEvent(context.Background(), roomID, eventID, reason)
			if err != nil {
				return err
			}
			fmt.Println(redactionID)
			return nil
		},
	}
}

func typingCommand() *cli.Command {
	var room string
	var off bool
	var timeout time.Duration

	return &cli.Command{
		Name:    "typing",
		Summary: "Send a typing notification",
		Usage:   "mnotify typing --room <room-id> [--off]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("typing", pflag.ContinueOnError)
			flags.StringVar(&room, "room", "", "room id (required)")
			flags.BoolVar(&off, "off", false, "stop typing instead of starting")
			flags.DurationVar(&timeout, "timeout", 30*time.Second, "how long the indicator stays up")
			return flags
		},
		Run: func(args []string) error {
			roomID, err := ref.ParseRoomID(room)
			if err != nil {
				return fmt.Errorf("--room: %w", err)
			}
			_, session, err := openSession()
			if err != nil {
				return err
			}
			defer session.Close()

			return session.SendTyping(context.Background(), roomID, !off, timeout)
		},
	}
}
