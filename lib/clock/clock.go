// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations mnotify code paths depend on:
// reading the current time and waiting for a duration. Production code
// injects Real(); tests inject a Fake and advance it explicitly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the fire time once d has
	// elapsed, like time.After. If d <= 0, the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time
}
