// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package watch provides a single-slot, version-tagged broadcast
// channel. One producer publishes values; any number of subscribers
// poll for the latest one.
//
// The channel holds only the most recent value. A subscriber that
// polls less often than the producer publishes sees the latest value
// and skips the intermediate ones; it never sees values out of order
// and never blocks the producer. This is the right shape for state
// snapshots, where only the newest version matters.
package watch

import "sync/atomic"

// Channel is a single-slot broadcast channel. One goroutine calls
// Publish; subscribers created with Subscribe poll independently.
//
// Publish must be called from a single goroutine. Poll is safe to call
// concurrently with Publish and with other subscribers' polls.
type Channel[T any] struct {
	state atomic.Pointer[versioned[T]]
}

// versioned pairs a value with the version it was published at. The
// pair is immutable once stored; Publish swaps in a fresh pair rather
// than mutating, so a concurrent Poll always observes a consistent
// (version, value) combination.
type versioned[T any] struct {
	version uint64
	value   T
}

// New returns a Channel holding the zero value of T at version 1.
// Subscribers created before the first Publish observe the zero value
// on their first poll.
func New[T any]() *Channel[T] {
	c := &Channel[T]{}
	c.state.Store(&versioned[T]{version: 1})
	return c
}

// Publish stores v as the latest value, unconditionally replacing the
// previous one. It never blocks, regardless of how many subscribers
// exist or how slowly they poll.
func (c *Channel[T]) Publish(v T) {
	current := c.state.Load()
	c.state.Store(&versioned[T]{version: current.version + 1, value: v})
}

// Version returns the current version counter. It advances by one on
// every Publish; observing the same version twice means no publish
// happened in between.
func (c *Channel[T]) Version() uint64 {
	return c.state.Load().version
}

// Subscribe returns a new Subscriber positioned one version behind the
// current value, so its first Poll reports the current value as
// changed. Each subscriber tracks its own position; subscribers never
// affect one another or the producer.
func (c *Channel[T]) Subscribe() *Subscriber[T] {
	return &Subscriber[T]{
		channel:  c,
		lastSeen: c.state.Load().version - 1,
	}
}

// Subscriber is a single reader's view of a Channel. Not safe for
// concurrent use; each goroutine should hold its own Subscriber.
type Subscriber[T any] struct {
	channel  *Channel[T]
	lastSeen uint64
}

// Poll returns the latest published value and whether it changed since
// the previous Poll. The value and the changed flag come from one
// atomic load, so the flag always describes the returned value. Poll
// never blocks.
func (s *Subscriber[T]) Poll() (T, bool) {
	current := s.channel.state.Load()
	changed := current.version != s.lastSeen
	s.lastSeen = current.version
	return current.value, changed
}
