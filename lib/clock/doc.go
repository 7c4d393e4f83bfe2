// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that poll
// and retry delays can be driven deterministically in tests.
//
// Production code holds a Clock field and calls After instead of
// time.After; Real() supplies the standard library behavior. Tests
// inject a Fake, use WaitForTimers to sequence with the goroutine
// under test, and release it with Advance:
//
//	fake := clock.NewFake(time.Unix(0, 0))
//	server := NewServer(Config{Clock: fake, PollInterval: time.Minute})
//	// ... the write loop parks on fake.After ...
//	fake.WaitForTimers(1)
//	fake.Advance(time.Minute) // the loop polls again
package clock
