// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/MatthiasGrandl/mnotify/lib/cli"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCommand().Execute(os.Args[1:])
}

// rootCommand builds the mnotify command tree.
func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "mnotify",
		Description: `mnotify: Matrix state fan-out daemon.

Exposes a Matrix account's live room state to local processes over a
unix socket, one JSON snapshot per line, and accepts send/file/subscribe
commands from those same processes.`,
		Subcommands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			homeserverCommand(),
			cleanCommand(),
			serveCommand(),
			sendCommand(),
			redactCommand(),
			typingCommand(),
			tailCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Authenticate against a homeserver (saves the session locally)",
				Command:     "mnotify login @alice:example.org",
			},
			{
				Description: "Run the daemon",
				Command:     "mnotify serve",
			},
			{
				Description: "Send a message without the daemon",
				Command:     "mnotify send --room '!ops:example.org' 'deploy finished'",
			},
			{
				Description: "Watch the snapshot stream",
				Command:     "mnotify tail",
			},
		},
	}
}
