// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
)

// defaultMaxConcurrent bounds detached command goroutines when
// DispatcherConfig leaves MaxConcurrent unset.
const defaultMaxConcurrent = 8

// Backend executes decoded commands against the messaging layer.
// Implemented by the daemon over its session and sync stream.
type Backend interface {
	SendText(ctx context.Context, roomID ref.RoomID, text string) error
	SendReply(ctx context.Context, roomID ref.RoomID, replyTo ref.EventID, text string) error
	SendAttachment(ctx context.Context, roomID ref.RoomID, path string) error
	SubscribeRoom(ctx context.Context, roomID ref.RoomID) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Backend executes the commands. Required.
	Backend Backend

	// MaxConcurrent bounds the number of commands executing at once.
	// Zero uses a default of 8.
	MaxConcurrent int

	// Logger records dispatch outcomes. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Dispatcher runs decoded commands as detached units of work. The
// outcome of each command is logged, never reported back to the
// client that sent it. Safe for concurrent use.
type Dispatcher struct {
	backend Backend
	logger  *slog.Logger
	slots   chan struct{}
	pending sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		backend: config.Backend,
		logger:  logger,
		slots:   make(chan struct{}, maxConcurrent),
	}
}

// HandleLine decodes one inbound line and dispatches the resulting
// command. A decode failure is returned (the caller drops the line);
// dispatch itself never fails from the caller's perspective.
func (d *Dispatcher) HandleLine(ctx context.Context, line []byte) error {
	cmd, err := Decode(line)
	if err != nil {
		return err
	}
	d.Dispatch(ctx, cmd)
	return nil
}

// Dispatch runs cmd as a detached goroutine. It blocks only while all
// concurrency slots are taken; the command's execution is not awaited.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) {
	d.slots <- struct{}{}
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		defer func() { <-d.slots }()
		if err := d.execute(ctx, cmd); err != nil {
			d.logger.Warn("command failed", "command", commandName(cmd), "error", err)
			return
		}
		d.logger.Debug("command completed", "command", commandName(cmd))
	}()
}

// Close waits for all in-flight commands to finish. Callers must stop
// feeding the dispatcher before closing it.
func (d *Dispatcher) Close() {
	d.pending.Wait()
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) error {
	switch cmd := cmd.(type) {
	case Send:
		if !cmd.ReplyTo.IsZero() {
			return d.backend.SendReply(ctx, cmd.RoomID, cmd.ReplyTo, cmd.Text)
		}
		return d.backend.SendText(ctx, cmd.RoomID, cmd.Text)
	case Attach:
		return d.backend.SendAttachment(ctx, cmd.RoomID, cmd.Path)
	case Subscribe:
		return d.backend.SubscribeRoom(ctx, cmd.RoomID)
	default:
		return fmt.Errorf("command: unhandled command type %T", cmd)
	}
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case Send:
		return "send"
	case Attach:
		return "file"
	case Subscribe:
		return "subscribe"
	default:
		return fmt.Sprintf("%T", cmd)
	}
}
