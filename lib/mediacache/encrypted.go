// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package mediacache

import (
	"encoding/json"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
)

// EncryptedFile is the Matrix encrypted-attachment descriptor embedded
// in message event content under the "file" key. The ciphertext lives
// at URL; Key, IV, and Hashes carry the material needed to verify and
// decrypt it.
type EncryptedFile struct {
	URL     ref.MXCURI        `json:"url"`
	Key     JSONWebKey        `json:"key"`
	IV      string            `json:"iv"`
	Hashes  map[string]string `json:"hashes"`
	Version string            `json:"v"`
}

// JSONWebKey is the JWK carried inside an EncryptedFile. Matrix
// attachments always use a 256-bit "oct" key with algorithm "A256CTR",
// base64url-encoded without padding.
type JSONWebKey struct {
	KeyType     string   `json:"kty"`
	KeyOps      []string `json:"key_ops,omitempty"`
	Algorithm   string   `json:"alg"`
	Key         string   `json:"k"`
	Extractable bool     `json:"ext,omitempty"`
}

// ParseEncryptedFile extracts the encrypted-attachment descriptor from
// message event content. It reports false when the content carries no
// "file" object or the object is malformed; such events are simply not
// cacheable.
func ParseEncryptedFile(content map[string]any) (*EncryptedFile, bool) {
	raw, ok := content["file"]
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var file EncryptedFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, false
	}
	if file.URL.IsZero() || file.Key.Key == "" || file.IV == "" {
		return nil, false
	}
	if file.Hashes["sha256"] == "" {
		return nil, false
	}
	return &file, true
}
