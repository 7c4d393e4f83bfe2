// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the mnotify daemon.
//
// Configuration is loaded from a single file specified by:
//   - MNOTIFY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// When neither is given, defaults apply. There are no fallbacks or
// automatic discovery beyond that, so configuration stays deterministic
// and auditable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for mnotify.
type Config struct {
	// Socket configures the local broadcast socket.
	Socket SocketConfig `yaml:"socket"`

	// Cache configures the media cache.
	Cache CacheConfig `yaml:"cache"`

	// Sync configures the homeserver sync loop.
	Sync SyncConfig `yaml:"sync"`

	// Feed configures snapshot delivery to connected clients.
	Feed FeedConfig `yaml:"feed"`

	// Thumbnail configures avatar thumbnail requests.
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
}

// SocketConfig configures the Unix domain socket the daemon serves on.
type SocketConfig struct {
	// Path is the socket file path. The daemon removes a stale file at
	// this path on startup; a removal failure aborts startup. One daemon
	// per path.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/mnotify.sock
	Path string `yaml:"path"`
}

// CacheConfig configures the content-addressed media cache.
type CacheConfig struct {
	// Dir is the directory media files are decrypted into, one file per
	// content id. Created on startup if missing.
	// Default: ${HOME}/.cache/mnotify/media
	Dir string `yaml:"dir"`
}

// SyncConfig configures the homeserver long-poll sync loop.
type SyncConfig struct {
	// Timeout is how long each /sync request waits server-side for new
	// events, as a duration string.
	// Default: 30s
	Timeout string `yaml:"timeout"`

	// TimelineLimit is the per-room timeline event limit requested in
	// the sync filter.
	// Default: 10
	TimelineLimit int `yaml:"timeline_limit"`

	// SubscribedTimelineLimit is the timeline limit used for rooms a
	// client has subscribed to.
	// Default: 50
	SubscribedTimelineLimit int `yaml:"subscribed_timeline_limit"`

	// Presence is the presence state advertised while syncing.
	// Values: "online", "offline", "unavailable".
	// Default: online
	Presence string `yaml:"presence"`
}

// FeedConfig configures snapshot delivery to socket clients.
type FeedConfig struct {
	// PollInterval is how long a connection's write loop sleeps between
	// snapshot polls when nothing has changed, as a duration string.
	// Default: 100ms
	PollInterval string `yaml:"poll_interval"`

	// MaxDispatch bounds the number of client commands executing
	// concurrently across all connections.
	// Default: 8
	MaxDispatch int `yaml:"max_dispatch"`
}

// ThumbnailConfig configures avatar thumbnail downloads.
type ThumbnailConfig struct {
	// Width and Height are the requested thumbnail dimensions in pixels.
	// Default: 50x50
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Method is the server-side scaling method: "scale" or "crop".
	// Default: scale
	Method string `yaml:"method"`
}

// Default returns the default configuration. mnotify runs with these
// values when no config file is given.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Socket: SocketConfig{
			Path: "${XDG_RUNTIME_DIR:-/tmp}/mnotify.sock",
		},
		Cache: CacheConfig{
			Dir: filepath.Join(homeDir, ".cache", "mnotify", "media"),
		},
		Sync: SyncConfig{
			Timeout:                 "30s",
			TimelineLimit:           10,
			SubscribedTimelineLimit: 50,
			Presence:                "online",
		},
		Feed: FeedConfig{
			PollInterval: "100ms",
			MaxDispatch:  8,
		},
		Thumbnail: ThumbnailConfig{
			Width:  50,
			Height: 50,
			Method: "scale",
		},
	}
}

// Load loads configuration from the MNOTIFY_CONFIG environment variable.
// When MNOTIFY_CONFIG is unset, the defaults are returned; when it is
// set, the file must exist and parse.
func Load() (*Config, error) {
	configPath := os.Getenv("MNOTIFY_CONFIG")
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, cfg.validate()
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// SyncTimeout returns the parsed sync long-poll timeout. validate
// guarantees the field parses, so this never fails after a successful
// Load or LoadFile.
func (c *Config) SyncTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Sync.Timeout)
	return d
}

// FeedPollInterval returns the parsed write-loop poll interval.
func (c *Config) FeedPollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Feed.PollInterval)
	return d
}

func (c *Config) validate() error {
	if c.Socket.Path == "" {
		return fmt.Errorf("socket.path must not be empty")
	}
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir must not be empty")
	}
	if d, err := time.ParseDuration(c.Sync.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("sync.timeout: %q is not a positive duration", c.Sync.Timeout)
	}
	if c.Sync.TimelineLimit <= 0 {
		return fmt.Errorf("sync.timeline_limit must be positive, got %d", c.Sync.TimelineLimit)
	}
	if c.Sync.SubscribedTimelineLimit < c.Sync.TimelineLimit {
		return fmt.Errorf("sync.subscribed_timeline_limit (%d) must be >= sync.timeline_limit (%d)",
			c.Sync.SubscribedTimelineLimit, c.Sync.TimelineLimit)
	}
	switch c.Sync.Presence {
	case "online", "offline", "unavailable":
	default:
		return fmt.Errorf("sync.presence: %q is not one of online, offline, unavailable", c.Sync.Presence)
	}
	if d, err := time.ParseDuration(c.Feed.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("feed.poll_interval: %q is not a positive duration", c.Feed.PollInterval)
	}
	if c.Feed.MaxDispatch <= 0 {
		return fmt.Errorf("feed.max_dispatch must be positive, got %d", c.Feed.MaxDispatch)
	}
	if c.Thumbnail.Width <= 0 || c.Thumbnail.Height <= 0 {
		return fmt.Errorf("thumbnail dimensions must be positive, got %dx%d",
			c.Thumbnail.Width, c.Thumbnail.Height)
	}
	switch c.Thumbnail.Method {
	case "scale", "crop":
	default:
		return fmt.Errorf("thumbnail.method: %q is not one of scale, crop", c.Thumbnail.Method)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
		"XDG_CACHE_HOME":  os.Getenv("XDG_CACHE_HOME"),
	}

	c.Socket.Path = expandVars(c.Socket.Path, vars)
	c.Cache.Dir = expandVars(c.Cache.Dir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
