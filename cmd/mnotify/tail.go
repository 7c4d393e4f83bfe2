// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/MatthiasGrandl/mnotify/lib/cli"
	"github.com/MatthiasGrandl/mnotify/lib/netutil"
)

func tailCommand() *cli.Command {
	var configPath string
	var socketPath string

	return &cli.Command{
		Name:    "tail",
		Summary: "Stream snapshot lines from a running daemon",
		Description: `Connect to the daemon's socket and copy every state snapshot it
broadcasts to stdout, one JSON document per line. Useful for scripting
and for checking what connected clients currently see.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "config file path (default: MNOTIFY_CONFIG or built-in defaults)")
			flags.StringVar(&socketPath, "socket", "", "socket path (overrides the config)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("tail takes no arguments")
			}
			if socketPath == "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				socketPath = cfg.Socket.Path
			}

			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				return fmt.Errorf("connecting to %s (is the daemon running?): %w", socketPath, err)
			}
			defer conn.Close()

			reader := bufio.NewReader(conn)
			for {
				line, err := reader.ReadBytes('\n')
				if len(line) > 0 {
					os.Stdout.Write(line)
				}
				if err != nil {
					if err == io.EOF || netutil.IsExpectedCloseError(err) {
						return nil
					}
					return err
				}
			}
		},
		Examples: []cli.Example{
			{
				Description: "Pretty-print the unread count of every room",
				Command:     "mnotify tail | jq '.[] | {room_id, unread_count}'",
			},
		},
	}
}
