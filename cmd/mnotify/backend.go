// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/MatthiasGrandl/mnotify/lib/config"
	"github.com/MatthiasGrandl/mnotify/lib/ref"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

// sessionBackend executes decoded client commands against the Matrix
// session. Subscribe additionally widens the sync stream's timeline
// filter so subscribed rooms come back with more history.
type sessionBackend struct {
	session *messaging.Session
	stream  *messaging.SyncStream
}

func (b *sessionBackend) SendText(ctx context.Context, roomID ref.RoomID, text string) error {
	_, err := b.session.SendMessage(ctx, roomID, messaging.NewTextMessage(text))
	return err
}

func (b *sessionBackend) SendReply(ctx context.Context, roomID ref.RoomID, replyTo ref.EventID, text string) error {
	_, err := b.session.SendMessage(ctx, roomID, messaging.NewReply(replyTo, text))
	return err
}

func (b *sessionBackend) SendAttachment(ctx context.Context, roomID ref.RoomID, path string) error {
	_, err := sendAttachment(ctx, b.session, roomID, path)
	return err
}

func (b *sessionBackend) SubscribeRoom(ctx context.Context, roomID ref.RoomID) error {
	b.stream.SubscribeRoom(roomID)
	return nil
}

// sessionDirectory resolves member lists and avatar thumbnails for
// snapshot building.
type sessionDirectory struct {
	session   *messaging.Session
	thumbnail config.ThumbnailConfig
}

func (d *sessionDirectory) RoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error) {
	return d.session.GetRoomMembers(ctx, roomID)
}

func (d *sessionDirectory) AvatarThumbnailURL(avatarURL string) string {
	if avatarURL == "" {
		return ""
	}
	uri, err := ref.ParseMXCURI(avatarURL)
	if err != nil {
		return ""
	}
	return d.session.ThumbnailURL(uri, d.thumbnail.Width, d.thumbnail.Height, d.thumbnail.Method)
}
