// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/MatthiasGrandl/mnotify/lib/cli"
	"github.com/MatthiasGrandl/mnotify/lib/ref"
	"github.com/MatthiasGrandl/mnotify/lib/secret"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

func loginCommand() *cli.Command {
	var homeserver string
	var passwordFile string

	return &cli.Command{
		Name:    "login",
		Summary: "Authenticate against a homeserver and save the session",
		Usage:   "mnotify login [flags] <user-id>",
		Description: `Log in with a password and store the resulting access token in the
session file (~/.config/mnotify/session.json, or MNOTIFY_SESSION_FILE).

The homeserver defaults to https://<server> from the user id; pass
--homeserver when the server delegates to a different host. The
password is read from the terminal, or from --password-file for
non-interactive use.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
			flags.StringVar(&homeserver, "homeserver", "", "homeserver base URL (default derived from the user id)")
			flags.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: mnotify login [flags] <user-id>")
			}
			userID, err := ref.ParseUserID(args[0])
			if err != nil {
				return err
			}
			if homeserver == "" {
				homeserver = "https://" + userID.Server()
			}

			password, err := readPassword(passwordFile, userID)
			if err != nil {
				return err
			}
			defer password.Close()

			client, err := messaging.NewClient(messaging.ClientConfig{
				HomeserverURL: homeserver,
				Logger:        cli.NewCommandLogger(),
			})
			if err != nil {
				return err
			}

			ctx := context.Background()
			session, err := client.Login(ctx, userID.Localpart(), password)
			if err != nil {
				return err
			}
			defer session.Close()

			// Round-trip the token before persisting it.
			verified, err := session.WhoAmI(ctx)
			if err != nil {
				return fmt.Errorf("verifying session: %w", err)
			}

			if err := saveStoredSession(&storedSession{
				Homeserver:  homeserver,
				UserID:      verified.String(),
				AccessToken: session.AccessToken(),
				DeviceID:    session.DeviceID(),
			}); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", verified)
			return nil
		},
		Examples: []cli.Example{
			{
				Description: "Interactive login",
				Command:     "mnotify login @alice:example.org",
			},
			{
				Description: "Non-interactive login for scripts",
				Command:     "mnotify login --password-file /run/secrets/matrix @bot:example.org",
			},
		},
	}
}

// readPassword obtains the login password, preferring the file when
// given, otherwise prompting on the terminal without echo.
func readPassword(passwordFile string, userID ref.UserID) (*secret.Buffer, error) {
	if passwordFile != "" {
		return secret.ReadFromPath(passwordFile)
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("stdin is not a terminal; use --password-file")
	}
	fmt.Fprintf(os.Stderr, "password for %s: ", userID)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	defer secret.Zero(raw)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("empty password")
	}
	return secret.NewFromBytes(raw)
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Invalidate the stored access token and delete the session",
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("logout takes no arguments")
			}
			_, session, err := openSession()
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Logout(context.Background()); err != nil {
				// The token may already be dead server-side; still drop
				// the local file so login starts fresh.
				fmt.Fprintf(os.Stderr, "warning: server logout failed: %v\n", err)
			}
			if err := removeStoredSession(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the identity of the stored session",
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("whoami takes no arguments")
			}
			_, session, err := openSession()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return &cli.ExitError{Code: 1}
			}
			defer session.Close()

			userID, err := session.WhoAmI(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(userID)
			return nil
		},
	}
}
