// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the mnotify
// daemon.
//
// Configuration is loaded from a single file specified by either the
// MNOTIFY_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search; when neither is
// given, [Default] values apply. Environment variables never override
// config values — the only expansion performed is ${HOME},
// ${XDG_RUNTIME_DIR}, and ${VAR:-default} patterns in path fields, for
// portability.
//
// Key exports:
//
//   - [Config] -- master struct with Socket, Cache, Sync, Feed, Thumbnail
//   - [Default] -- returns a Config with working defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other mnotify packages.
package config
