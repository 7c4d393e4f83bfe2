// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/MatthiasGrandl/mnotify/lib/cli"
	"github.com/MatthiasGrandl/mnotify/lib/command"
	"github.com/MatthiasGrandl/mnotify/lib/config"
	"github.com/MatthiasGrandl/mnotify/lib/feed"
	"github.com/MatthiasGrandl/mnotify/lib/mediacache"
	"github.com/MatthiasGrandl/mnotify/lib/snapshot"
	"github.com/MatthiasGrandl/mnotify/lib/watch"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

func serveCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "serve",
		Summary: "Run the state fan-out daemon",
		Description: `Run the mnotify daemon: sync against the homeserver, publish room
state snapshots over the unix socket, and execute commands from
connected clients.

One daemon per socket path. The daemon removes a stale socket file on
startup and refuses to start if the path cannot be cleared. SIGINT or
SIGTERM shuts it down: the listener closes, open connections drain,
and in-flight commands finish.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file path (default: MNOTIFY_CONFIG or built-in defaults)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("serve takes no arguments")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func serve(cfg *config.Config) error {
	logger := cli.NewCommandLogger().With("command", "serve")

	_, session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream := messaging.NewSyncStream(messaging.StreamConfig{
		Session:                 session,
		TimelineLimit:           cfg.Sync.TimelineLimit,
		SubscribedTimelineLimit: cfg.Sync.SubscribedTimelineLimit,
		LongPollTimeout:         int(cfg.SyncTimeout() / time.Millisecond),
		Presence:                cfg.Sync.Presence,
		Logger:                  logger,
	})

	cache, err := mediacache.New(cfg.Cache.Dir, session, logger)
	if err != nil {
		return err
	}

	tracker := snapshot.NewTracker(snapshot.TrackerConfig{
		UserID:        session.UserID(),
		TimelineLimit: cfg.Sync.SubscribedTimelineLimit,
		Logger:        logger,
	})

	channel := watch.New[[]byte]()

	dispatcher := command.NewDispatcher(command.DispatcherConfig{
		Backend: &sessionBackend{
			session: session,
			stream:  stream,
		},
		MaxConcurrent: cfg.Feed.MaxDispatch,
		Logger:        logger,
	})
	defer dispatcher.Close()

	driver, err := feed.NewDriver(feed.DriverConfig{
		Stream:    stream,
		Tracker:   tracker,
		Directory: &sessionDirectory{session: session, thumbnail: cfg.Thumbnail},
		Channel:   channel,
		Cache:     cache,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	server, err := feed.NewServer(feed.ServerConfig{
		SocketPath:   cfg.Socket.Path,
		Channel:      channel,
		Dispatcher:   dispatcher,
		PollInterval: cfg.FeedPollInterval(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("starting",
		"user", session.UserID(),
		"socket", cfg.Socket.Path,
		"cache", cfg.Cache.Dir,
	)

	// Either side failing (or a signal) takes the whole daemon down:
	// the shared context cancels, the server drains its connections,
	// and the driver's stream call returns.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Serve(groupCtx) })
	group.Go(func() error {
		defer stop()
		err := driver.Run(groupCtx)
		if groupCtx.Err() != nil {
			// Shutdown was requested; the stream error is just the
			// long-poll being cancelled.
			return nil
		}
		return err
	})

	err = group.Wait()
	logger.Info("stopped")
	return err
}
