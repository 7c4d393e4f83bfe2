// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MatthiasGrandl/mnotify/lib/mediacache"
	"github.com/MatthiasGrandl/mnotify/lib/snapshot"
	"github.com/MatthiasGrandl/mnotify/lib/watch"

	"github.com/MatthiasGrandl/mnotify/messaging"
)

// Stream supplies sync responses. Satisfied by messaging.SyncStream.
type Stream interface {
	Next(ctx context.Context) (*messaging.SyncResponse, error)
}

// MediaCacher persists encrypted attachments. Satisfied by
// mediacache.Cache.
type MediaCacher interface {
	Ensure(ctx context.Context, file *mediacache.EncryptedFile) (string, error)
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	// Stream is the upstream sync consumer. Required.
	Stream Stream

	// Tracker accumulates sync responses. Required. The Driver is its
	// sole user.
	Tracker *snapshot.Tracker

	// Directory resolves members and avatars when building documents.
	// Required.
	Directory snapshot.Directory

	// Channel receives encoded snapshot lines. Required. The Driver
	// must be its only publisher.
	Channel *watch.Channel[[]byte]

	// Cache, when set, is filled in the background with the encrypted
	// attachments each sync cycle references.
	Cache MediaCacher

	// Logger records cycle outcomes. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Driver turns the upstream sync stream into published snapshot
// lines. Run is the single publisher to the channel; identical
// consecutive documents are never re-published.
type Driver struct {
	stream    Stream
	tracker   *snapshot.Tracker
	directory snapshot.Directory
	channel   *watch.Channel[[]byte]
	cache     MediaCacher
	logger    *slog.Logger

	lastDigest snapshot.Digest
	published  bool
	detached   sync.WaitGroup
}

// NewDriver creates a Driver from config.
func NewDriver(config DriverConfig) (*Driver, error) {
	if config.Stream == nil {
		return nil, fmt.Errorf("feed: stream is required")
	}
	if config.Tracker == nil {
		return nil, fmt.Errorf("feed: tracker is required")
	}
	if config.Directory == nil {
		return nil, fmt.Errorf("feed: directory is required")
	}
	if config.Channel == nil {
		return nil, fmt.Errorf("feed: channel is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		stream:    config.Stream,
		tracker:   config.Tracker,
		directory: config.Directory,
		channel:   config.Channel,
		cache:     config.Cache,
		logger:    logger,
	}, nil
}

// Run consumes the stream until it ends. A stream error is terminal;
// the caller shuts the service down. A member-fetch failure only
// skips that cycle. Detached media-cache fills are awaited before Run
// returns.
func (d *Driver) Run(ctx context.Context) error {
	defer d.detached.Wait()

	for {
		response, err := d.stream.Next(ctx)
		if err != nil {
			return fmt.Errorf("feed: sync stream ended: %w", err)
		}

		attachments := d.tracker.Apply(response)
		d.cacheAttachments(ctx, attachments)

		document, err := d.tracker.BuildDocument(ctx, d.directory)
		if err != nil {
			d.logger.Warn("skipping sync cycle", "error", err)
			continue
		}
		wire, digest, err := snapshot.Encode(document)
		if err != nil {
			d.logger.Warn("skipping sync cycle", "error", err)
			continue
		}

		if d.published && digest == d.lastDigest {
			continue
		}
		d.channel.Publish(wire)
		d.lastDigest = digest
		d.published = true
		d.logger.Debug("published snapshot", "rooms", len(document), "bytes", len(wire))
	}
}

// cacheAttachments fills the media cache in the background. Each
// attachment is a detached unit of work; failures are logged and
// abandoned, never retried, and never affect the snapshot.
func (d *Driver) cacheAttachments(ctx context.Context, files []*mediacache.EncryptedFile) {
	if d.cache == nil {
		return
	}
	for _, file := range files {
		d.detached.Add(1)
		go func() {
			defer d.detached.Done()
			if _, err := d.cache.Ensure(ctx, file); err != nil {
				d.logger.Debug("media cache fill failed", "url", file.URL, "error", err)
			}
		}()
	}
}
