// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import (
	"sync"
	"testing"
)

func TestPoll_FirstPollReportsCurrentValue(t *testing.T) {
	channel := New[string]()
	channel.Publish("hello")

	sub := channel.Subscribe()
	value, changed := sub.Poll()
	if !changed {
		t.Fatal("first Poll() changed = false, want true")
	}
	if value != "hello" {
		t.Errorf("value = %q, want %q", value, "hello")
	}
}

func TestPoll_ZeroValueBeforeFirstPublish(t *testing.T) {
	channel := New[int]()

	sub := channel.Subscribe()
	value, changed := sub.Poll()
	if !changed {
		t.Fatal("first Poll() changed = false, want true")
	}
	if value != 0 {
		t.Errorf("value = %d, want 0", value)
	}
}

func TestPoll_UnchangedUntilNextPublish(t *testing.T) {
	channel := New[string]()
	channel.Publish("a")

	sub := channel.Subscribe()
	sub.Poll()

	if _, changed := sub.Poll(); changed {
		t.Error("Poll() with no new publish reported changed = true")
	}

	channel.Publish("b")
	value, changed := sub.Poll()
	if !changed {
		t.Fatal("Poll() after publish reported changed = false")
	}
	if value != "b" {
		t.Errorf("value = %q, want %q", value, "b")
	}
}

func TestPoll_LatestWins(t *testing.T) {
	channel := New[int]()
	sub := channel.Subscribe()

	// Publish a burst without polling: the subscriber must see only the
	// final value, never an intermediate or out-of-order one.
	for i := 1; i <= 100; i++ {
		channel.Publish(i)
	}

	value, changed := sub.Poll()
	if !changed {
		t.Fatal("Poll() after burst reported changed = false")
	}
	if value != 100 {
		t.Errorf("value = %d, want 100 (latest wins)", value)
	}
	if _, changed := sub.Poll(); changed {
		t.Error("second Poll() after burst reported changed = true")
	}
}

func TestSubscribers_Independent(t *testing.T) {
	channel := New[string]()
	channel.Publish("first")

	fast := channel.Subscribe()
	slow := channel.Subscribe()

	// fast consumes, slow does not.
	if value, changed := fast.Poll(); !changed || value != "first" {
		t.Fatalf("fast.Poll() = (%q, %v), want (first, true)", value, changed)
	}

	channel.Publish("second")

	// fast sees only the delta; slow sees the latest state regardless of
	// never having polled before.
	if value, changed := fast.Poll(); !changed || value != "second" {
		t.Errorf("fast.Poll() = (%q, %v), want (second, true)", value, changed)
	}
	if value, changed := slow.Poll(); !changed || value != "second" {
		t.Errorf("slow.Poll() = (%q, %v), want (second, true)", value, changed)
	}
}

func TestSubscribe_AfterPublishesSeesLatest(t *testing.T) {
	channel := New[int]()
	channel.Publish(1)
	channel.Publish(2)
	channel.Publish(3)

	late := channel.Subscribe()
	value, changed := late.Poll()
	if !changed || value != 3 {
		t.Errorf("late.Poll() = (%d, %v), want (3, true)", value, changed)
	}
}

func TestPublish_NeverBlockedByReaders(t *testing.T) {
	channel := New[int]()

	// Many concurrent pollers while the producer publishes. The test
	// passes if it terminates (no deadlock) and every observed value is
	// consistent with publish order per subscriber.
	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := channel.Subscribe()
			last := -1
			for {
				select {
				case <-done:
					return
				default:
				}
				value, changed := sub.Poll()
				if changed {
					if value < last {
						t.Errorf("observed value %d after %d (reordered)", value, last)
						return
					}
					last = value
				}
			}
		}()
	}

	for i := 0; i <= 10000; i++ {
		channel.Publish(i)
	}
	close(done)
	wg.Wait()
}
