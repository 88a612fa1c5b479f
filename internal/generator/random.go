// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package generator

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// source draws decoy values from a byte stream.
type source struct {
	r io.Reader
}

func newSource(r io.Reader) *source {
	if r == nil {
		return &source{r: rand.Reader}
	}
	return &source{r: &lockedReader{r: r}}
}

// Float64 returns a uniform value in [0,1) with 53 bits of precision.
func (s *source) Float64() (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(s.r, b[:]); err != nil {
		return 0, fmt.Errorf("failed to read random source: %w", err)
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53), nil
}

// Intn returns a value in [0,n).
func (s *source) Intn(n int) (int, error) {
	f, err := s.Float64()
	if err != nil {
		return 0, err
	}
	return int(f * float64(n)), nil
}

// Hex returns n lowercase hex characters.
func (s *source) Hex(n int) (string, error) {
	b := make([]byte, (n+1)/2)
	if _, err := io.ReadFull(s.r, b); err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return hex.EncodeToString(b)[:n], nil
}

// Digits returns n decimal digits.
func (s *source) Digits(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(s.r, b); err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	for i := range b {
		b[i] = '0' + b[i]%10
	}
	return string(b), nil
}

// Word returns a dictionary word.
func (s *source) Word() (string, error) {
	i, err := s.Intn(len(words))
	if err != nil {
		return "", err
	}
	return words[i], nil
}

// lockedReader serializes access to readers that are not safe for
// concurrent use. crypto/rand.Reader is used directly.
type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}

var words = []string{
	"account", "admin", "archive", "assets", "audit", "backup", "billing",
	"blog", "catalog", "checkout", "config", "content", "customer", "dashboard",
	"data", "debug", "docs", "download", "draft", "export", "feed", "files",
	"gallery", "guide", "help", "history", "import", "index", "internal",
	"invoice", "legacy", "library", "media", "member", "metrics", "mirror",
	"news", "orders", "partner", "preview", "private", "product", "profile",
	"quarterly", "release", "report", "resources", "review", "sales", "search",
	"settings", "shared", "snapshot", "staging", "static", "summary", "support",
	"team", "temp", "upload", "users", "vault", "archive2019", "annual",
}
