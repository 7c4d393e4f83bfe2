// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/MatthiasGrandl/mnotify/lib/cli"
)

func homeserverCommand() *cli.Command {
	var includeToken bool
	var force bool

	return &cli.Command{
		Name:    "homeserver",
		Summary: "Show the stored session's homeserver and login",
		Usage:   "mnotify homeserver [--token --force]",
		Description: `Print the stored session as one JSON object: homeserver URL, user id,
and device id. The access token is excluded unless --token is given,
and --token additionally requires --force — the token grants full
account access and does not belong on a terminal or in shell history.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("homeserver", pflag.ContinueOnError)
			flags.BoolVar(&includeToken, "token", false, "include the access token in the output")
			flags.BoolVar(&force, "force", false, "really print the access token")
			return flags
		},
		Run: func(args []string) error {
			stored, err := loadStoredSession()
			if err != nil {
				return err
			}
			line, err := renderHomeserver(stored, includeToken, force)
			if err != nil {
				return err
			}
			fmt.Println(string(line))
			return nil
		},
	}
}

// renderHomeserver encodes the stored session for the homeserver
// subcommand. The access token is a full-account credential, so it is
// only included when the caller asks twice.
func renderHomeserver(stored *storedSession, includeToken, force bool) ([]byte, error) {
	output := struct {
		Homeserver string `json:"homeserver"`
		UserID     string `json:"user_id"`
		DeviceID   string `json:"device_id,omitempty"`
		Token      string `json:"token,omitempty"`
	}{
		Homeserver: stored.Homeserver,
		UserID:     stored.UserID,
		DeviceID:   stored.DeviceID,
	}
	if includeToken {
		if !force {
			return nil, fmt.Errorf("--token prints a credential with full account access; add --force to print it anyway")
		}
		output.Token = stored.AccessToken
	}
	return json.Marshal(output)
}

func cleanCommand() *cli.Command {
	var configPath string

	return &cli.Command{
		Name:    "clean",
		Summary: "Delete the stored session and cached media",
		Usage:   "mnotify clean [--config <path>]",
		Description: `Remove the local session file and empty the media cache directory.

Nothing is sent to the homeserver: the access token stays valid there
until 'mnotify logout' invalidates it. Use clean to reset local state
before a fresh login, or to reclaim cache space.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("clean", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file path (default: MNOTIFY_CONFIG or built-in defaults)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("clean takes no arguments")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := removeStoredSession(); err != nil {
				return err
			}
			return cleanCacheDir(cfg.Cache.Dir)
		},
	}
}

// cleanCacheDir removes every cached media file, keeping the directory
// itself. A missing directory is already clean.
func cleanCacheDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("removing cached media: %w", err)
		}
	}
	return nil
}
