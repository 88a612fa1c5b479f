// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package generator

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/tomtom215/tarpit/internal/trap"
)

const (
	nonceSize = 16
	tagSize   = 5

	// TokenLength is the encoded length of every minted token.
	TokenLength = 34

	maxResolvePath = 4096

	// MaxKeySize is the longest accepted MAC key.
	MaxKeySize = blake2b.Size
)

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Minter mints and verifies trap tokens.
type Minter struct {
	key []byte
}

// NewMinter creates a minter keyed with key. An empty key draws a random
// 32-byte key, which makes tokens from previous processes unverifiable.
func NewMinter(key []byte) (*Minter, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate minter key: %w", err)
		}
	}
	if len(key) > MaxKeySize {
		return nil, fmt.Errorf("minter key longer than %d bytes: %w", MaxKeySize, trap.ErrInvalidConfiguration)
	}
	return &Minter{key: append([]byte(nil), key...)}, nil
}

// Mint reads a nonce from r and returns the encoded token.
func (m *Minter) Mint(r io.Reader) (string, error) {
	var raw [nonceSize + tagSize]byte
	if _, err := io.ReadFull(r, raw[:nonceSize]); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	tag, err := m.tag(raw[:nonceSize])
	if err != nil {
		return "", err
	}
	copy(raw[nonceSize:], tag)
	return strings.ToLower(tokenEncoding.EncodeToString(raw[:])), nil
}

// Verify reports whether token is structurally a token from this minter.
func (m *Minter) Verify(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	raw, err := tokenEncoding.DecodeString(strings.ToUpper(token))
	if err != nil || len(raw) != nonceSize+tagSize {
		return false
	}
	tag, err := m.tag(raw[:nonceSize])
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(tag, raw[nonceSize:]) == 1
}

// FindToken extracts the first verifiable token from a requested path.
// The query string is ignored.
func (m *Minter) FindToken(path string) (string, bool) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if len(path) > maxResolvePath {
		return "", false
	}
	path = strings.ToLower(path)

	// Tokens are runs of base32 characters; shapes may glue literals to
	// them, so every window of a long run is a candidate.
	for _, run := range strings.FieldsFunc(path, func(r rune) bool { return !isBase32(r) }) {
		for i := 0; i+TokenLength <= len(run); i++ {
			if candidate := run[i : i+TokenLength]; m.Verify(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (m *Minter) tag(nonce []byte) ([]byte, error) {
	h, err := blake2b.New(tagSize, m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to init token mac: %w", err)
	}
	h.Write(nonce)
	return h.Sum(nil), nil
}

func isBase32(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '2' && r <= '7')
}
