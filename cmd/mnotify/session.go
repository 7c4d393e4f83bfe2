// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
	"github.com/MatthiasGrandl/mnotify/messaging"
)

// storedSession is the on-disk session saved by login. The access
// token grants full account access, so the file is written 0600.
type storedSession struct {
	Homeserver  string `json:"homeserver"`
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id,omitempty"`
}

// sessionPath returns the session file location: MNOTIFY_SESSION_FILE
// when set, otherwise ~/.config/mnotify/session.json.
func sessionPath() (string, error) {
	if path := os.Getenv("MNOTIFY_SESSION_FILE"); path != "" {
		return path, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(configDir, "mnotify", "session.json"), nil
}

func loadStoredSession() (*storedSession, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no session found; run 'mnotify login' first")
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	var session storedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	if session.Homeserver == "" || session.UserID == "" || session.AccessToken == "" {
		return nil, fmt.Errorf("session file %s is incomplete; run 'mnotify login' again", path)
	}
	return &session, nil
}

func saveStoredSession(session *storedSession) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

func removeStoredSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// openSession restores an authenticated messaging session from the
// stored session file.
func openSession() (*messaging.Client, *messaging.Session, error) {
	stored, err := loadStoredSession()
	if err != nil {
		return nil, nil, err
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: stored.Homeserver,
	})
	if err != nil {
		return nil, nil, err
	}
	userID, err := ref.ParseUserID(stored.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("session file user id: %w", err)
	}
	session, err := client.SessionFromToken(userID, stored.AccessToken)
	if err != nil {
		return nil, nil, err
	}
	return client, session, nil
}
