// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MatthiasGrandl/mnotify/lib/clock"
	"github.com/MatthiasGrandl/mnotify/lib/command"
	"github.com/MatthiasGrandl/mnotify/lib/netutil"
	"github.com/MatthiasGrandl/mnotify/lib/watch"
)

// defaultPollInterval is the write loop's retry delay when its
// subscriber reports no change.
const defaultPollInterval = 100 * time.Millisecond

// maxLineBytes bounds a single inbound command line. A longer line is
// dropped in its entirety; no legitimate command comes close.
const maxLineBytes = 1 << 20

// ServerConfig configures a Server.
type ServerConfig struct {
	// SocketPath is the well-known unix socket path. Required. A stale
	// socket file at this path is removed before binding; a removal
	// failure aborts startup.
	SocketPath string

	// Channel carries encoded snapshot lines from the Driver. Each
	// connection polls its own subscriber. Required.
	Channel *watch.Channel[[]byte]

	// Dispatcher handles inbound command lines. Required.
	Dispatcher *command.Dispatcher

	// PollInterval is the write loop's delay between unchanged polls.
	// Zero uses 100ms.
	PollInterval time.Duration

	// Clock drives the write loop's poll delay. If nil, the real
	// clock is used.
	Clock clock.Clock

	// Logger records connection lifecycle events. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

// Server accepts local clients on the unix socket and runs their
// read and write loops.
type Server struct {
	socketPath   string
	channel      *watch.Channel[[]byte]
	dispatcher   *command.Dispatcher
	pollInterval time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	nextID atomic.Int64
}

// NewServer creates a Server from config.
func NewServer(config ServerConfig) (*Server, error) {
	if config.SocketPath == "" {
		return nil, fmt.Errorf("feed: socket path is required")
	}
	if config.Channel == nil {
		return nil, fmt.Errorf("feed: channel is required")
	}
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("feed: dispatcher is required")
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath:   config.SocketPath,
		channel:      config.Channel,
		dispatcher:   config.Dispatcher,
		pollInterval: pollInterval,
		clock:        clk,
		logger:       logger,
	}, nil
}

// Serve binds the socket and accepts connections until ctx is
// cancelled, then closes every open connection and waits for their
// loops to stop. The socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	// A previous daemon instance may have left its socket behind.
	// Binding over a possibly-live socket would silently steal its
	// clients, so a failed removal aborts startup instead.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("feed: removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("feed: binding %s: %w", s.socketPath, err)
	}
	defer os.Remove(s.socketPath)

	s.mu.Lock()
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("listening", "socket", s.socketPath)

	var connections sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || netutil.IsExpectedCloseError(err) {
				break
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		connections.Add(1)
		go func() {
			defer connections.Done()
			s.handle(ctx, conn)
		}()
	}

	s.closeAll()
	connections.Wait()
	<-stopped
	return nil
}

// closeAll force-closes every open connection so their loops unblock.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

// handle runs one connection's read and write loops. Either loop
// ending closes the connection, which unblocks the other; the
// connection is gone once both have stopped.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	connID := strconv.FormatInt(s.nextID.Add(1), 10)
	logger := s.logger.With("conn", connID)
	logger.Debug("client connected")

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		logger.Debug("client disconnected")
	}()

	// The write loop only touches the conn when a fresh snapshot
	// arrives, so a dead peer would otherwise keep it polling forever.
	// Cancelling the connection context when the read loop ends stops
	// it promptly.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(connCtx, conn, logger)
		conn.Close()
	}()

	// Dispatched commands outlive their connection, so the read loop
	// hands the server context to the dispatcher, not connCtx.
	s.readLoop(ctx, conn, logger)
	cancel()
	conn.Close()
	<-done
}

// readLoop decodes inbound lines and hands them to the dispatcher.
// Input is buffered until a full newline-terminated command is
// available, so a read that splits a command mid-line is harmless. A
// malformed line is dropped, and a line exceeding maxLineBytes is
// discarded through its terminating newline; the loop ends only on
// EOF or a transport error.
func (s *Server) readLoop(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	reader := bufio.NewReaderSize(conn, maxLineBytes)

	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			logger.Debug("dropping oversized line", "limit", maxLineBytes)
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = reader.ReadSlice('\n')
			}
		} else if trimmed := bytes.TrimRight(line, "\r\n"); len(trimmed) > 0 {
			if dispatchErr := s.dispatcher.HandleLine(ctx, trimmed); dispatchErr != nil {
				if command.IsDecodeError(dispatchErr) {
					logger.Debug("dropping malformed line", "error", dispatchErr)
				} else {
					logger.Warn("dispatch failed", "error", dispatchErr)
				}
			}
		}
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("read loop ended", "error", err)
			}
			return
		}
	}
}

// writeLoop polls this connection's private subscriber and writes
// every fresh snapshot line to the client. An unchanged poll waits a
// fixed interval before retrying; a write error ends only this
// connection.
func (s *Server) writeLoop(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	subscriber := s.channel.Subscribe()
	for {
		line, changed := subscriber.Poll()
		if changed && len(line) > 0 {
			if _, err := conn.Write(line); err != nil {
				if !netutil.IsExpectedCloseError(err) {
					logger.Debug("write loop ended", "error", err)
				}
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.pollInterval):
		}
	}
}
