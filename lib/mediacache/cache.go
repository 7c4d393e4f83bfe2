// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
)

// Fetcher downloads raw media bytes for an mxc:// reference. Satisfied
// by messaging.Session.
type Fetcher interface {
	DownloadMedia(ctx context.Context, uri ref.MXCURI) ([]byte, error)
}

// ContentID derives the stable cache key for a media reference: the
// hex BLAKE3 digest of the canonical mxc:// string.
func ContentID(uri ref.MXCURI) string {
	sum := blake3.Sum256([]byte(uri.String()))
	return hex.EncodeToString(sum[:])
}

// Cache is a content-addressed store of decrypted attachments under a
// single directory. Safe for concurrent use.
type Cache struct {
	dir     string
	fetcher Fetcher
	logger  *slog.Logger
	group   singleflight.Group
}

// New creates a Cache rooted at dir, creating the directory if needed.
func New(dir string, fetcher Fetcher, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("mediacache: cache directory is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("mediacache: fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("mediacache: creating cache directory: %w", err)
	}
	return &Cache{dir: dir, fetcher: fetcher, logger: logger}, nil
}

// Path returns the deterministic on-disk location for a media
// reference, whether or not it is cached yet.
func (c *Cache) Path(uri ref.MXCURI) string {
	return filepath.Join(c.dir, ContentID(uri))
}

// Ensure makes the decrypted content of file available on disk and
// returns its path. A present file is returned immediately with no
// network or decrypt work. On a miss the ciphertext is downloaded,
// hash-verified, decrypted, and written atomically; concurrent calls
// for the same content id share one download.
func (c *Cache) Ensure(ctx context.Context, file *EncryptedFile) (string, error) {
	contentID := ContentID(file.URL)
	path := filepath.Join(c.dir, contentID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	_, err, _ := c.group.Do(contentID, func() (any, error) {
		// A concurrent caller may have completed while this one waited
		// for the flight slot.
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		plaintext, err := c.fetchAndDecrypt(ctx, file)
		if err != nil {
			return nil, err
		}
		return nil, writeAtomic(path, plaintext)
	})
	if err != nil {
		return "", fmt.Errorf("mediacache: caching %s: %w", file.URL, err)
	}
	return path, nil
}

func (c *Cache) fetchAndDecrypt(ctx context.Context, file *EncryptedFile) ([]byte, error) {
	ciphertext, err := c.fetcher.DownloadMedia(ctx, file.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading ciphertext: %w", err)
	}

	expected, err := decodeUnpadded(file.Hashes["sha256"])
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext hash: %w", err)
	}
	sum := sha256.Sum256(ciphertext)
	if subtle.ConstantTimeCompare(sum[:], expected) != 1 {
		return nil, fmt.Errorf("ciphertext hash mismatch")
	}

	key, err := base64.RawURLEncoding.DecodeString(file.Key.Key)
	if err != nil {
		return nil, fmt.Errorf("decoding attachment key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("attachment key is %d bytes, want 32", len(key))
	}
	iv, err := decodeUnpadded(file.IV)
	if err != nil {
		return nil, fmt.Errorf("decoding attachment iv: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("attachment iv is %d bytes, want %d", len(iv), aes.BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)
	return plaintext, nil
}

// writeAtomic writes data to path via a temp file and rename so a
// reader never observes a partially written cache entry.
func writeAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempName := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// decodeUnpadded decodes base64 in the standard alphabet regardless of
// padding. Matrix strips padding from attachment hashes and IVs, but
// some servers emit it anyway.
func decodeUnpadded(value string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
}
