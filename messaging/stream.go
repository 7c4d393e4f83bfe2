// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
)

// maxSyncRetries is the number of consecutive /sync failures allowed
// before Next returns a terminal error. Each retry uses a 1-second
// server-side timeout so the HTTP round-trip itself provides backoff.
const maxSyncRetries = 5

// longPollTimeout is the default server-side long-poll hold time in
// milliseconds. The server holds the connection for up to this
// duration, returning immediately when new events arrive. 30 seconds
// matches the Matrix client-server spec recommendation.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds used after
// a /sync error. Short so the retry completes quickly and the next
// attempt can proceed.
const retryTimeout = 1000

// StreamConfig configures a SyncStream.
type StreamConfig struct {
	// Session is the authenticated session to sync with. Required.
	Session *Session

	// TimelineLimit is the per-room timeline event limit requested in
	// the sync filter. Zero uses the server default.
	TimelineLimit int

	// SubscribedTimelineLimit is the timeline limit used once any room
	// has been subscribed via SubscribeRoom. Zero keeps TimelineLimit.
	SubscribedTimelineLimit int

	// LongPollTimeout overrides the server-side long-poll hold, in
	// milliseconds. Zero uses the 30-second default.
	LongPollTimeout int

	// Presence is the presence state advertised while syncing
	// ("online", "offline", "unavailable"). Empty omits the parameter.
	Presence string

	// Logger is used for retry logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// SyncStream owns a position in the Matrix /sync stream. Next
// long-polls for the following batch of events, handling the
// since-token cursor and transient error retries internally.
//
// Next must be called from a single goroutine. SubscribeRoom may be
// called concurrently with Next; the updated filter applies from the
// following poll.
type SyncStream struct {
	session     *Session
	logger      *slog.Logger
	pollTimeout int
	presence    string

	baseLimit       int
	subscribedLimit int

	mu         sync.Mutex
	subscribed map[ref.RoomID]struct{}
	filter     string

	since string
}

// NewSyncStream creates a SyncStream starting at the current end of
// the stream owner's event history (initial sync on first Next).
func NewSyncStream(config StreamConfig) *SyncStream {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := config.LongPollTimeout
	if pollTimeout <= 0 {
		pollTimeout = longPollTimeout
	}
	subscribedLimit := config.SubscribedTimelineLimit
	if subscribedLimit <= 0 {
		subscribedLimit = config.TimelineLimit
	}

	stream := &SyncStream{
		session:         config.Session,
		logger:          logger,
		pollTimeout:     pollTimeout,
		presence:        config.Presence,
		baseLimit:       config.TimelineLimit,
		subscribedLimit: subscribedLimit,
		subscribed:      make(map[ref.RoomID]struct{}),
	}
	stream.rebuildFilterLocked()
	return stream
}

// Next long-polls /sync and returns the next batch of events. The
// first call performs the initial sync (no since token); subsequent
// calls are incremental. Transient errors are retried up to
// maxSyncRetries times with a short server timeout; when retries are
// exhausted or ctx ends, Next returns a terminal error.
func (st *SyncStream) Next(ctx context.Context) (*SyncResponse, error) {
	var syncRetries int

	for {
		// On retry after a sync error, use a short server-side timeout
		// so the HTTP round-trip itself provides backoff. On first
		// attempt or after success, use the normal long-poll hold.
		syncTimeout := st.pollTimeout
		if syncRetries > 0 {
			syncTimeout = retryTimeout
		}

		st.mu.Lock()
		filter := st.filter
		st.mu.Unlock()

		response, err := st.session.Sync(ctx, SyncOptions{
			Since:       st.since,
			SetTimeout:  true,
			Timeout:     syncTimeout,
			Filter:      filter,
			SetPresence: st.presence,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("messaging: sync stream stopped: %w", ctx.Err())
			}
			syncRetries++
			// TCP-level errors (connection reset, EOF) often indicate
			// a poisoned connection in Go's HTTP pool. Drop idle
			// connections so the next attempt opens a fresh socket.
			st.session.CloseIdleConnections()
			if syncRetries > maxSyncRetries {
				return nil, fmt.Errorf("messaging: sync failed %d consecutive times: %w", syncRetries, err)
			}
			st.logger.Debug("sync stream error, retrying",
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			continue
		}

		st.since = response.NextBatch
		return response, nil
	}
}

// Since returns the current sync cursor. Empty before the first
// successful Next.
func (st *SyncStream) Since() string {
	return st.since
}

// SubscribeRoom marks a room as subscribed, raising the timeline limit
// used in subsequent polls. Reports whether the room was newly
// subscribed. Safe to call concurrently with Next.
func (st *SyncStream) SubscribeRoom(roomID ref.RoomID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.subscribed[roomID]; ok {
		return false
	}
	st.subscribed[roomID] = struct{}{}
	st.rebuildFilterLocked()
	return true
}

// Subscribed reports whether the room has been subscribed.
func (st *SyncStream) Subscribed(roomID ref.RoomID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.subscribed[roomID]
	return ok
}

// rebuildFilterLocked constructs the inline JSON filter string for
// /sync. Presence events are excluded; state and account_data pass
// through (the tracker needs room names, avatars, membership, and
// m.direct). The v3 sync filter carries a single timeline limit, so
// subscribing any room raises the limit for all rooms from the next
// poll on.
func (st *SyncStream) rebuildFilterLocked() {
	limit := st.baseLimit
	if len(st.subscribed) > 0 {
		limit = st.subscribedLimit
	}

	roomFilter := map[string]any{}
	if limit > 0 {
		roomFilter["timeline"] = map[string]any{"limit": limit}
	}
	top := map[string]any{
		"room":     roomFilter,
		"presence": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	st.filter = string(data)
}
