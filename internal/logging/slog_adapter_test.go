// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Attrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(zerolog.New(&buf)))

	logger.Info("service restarted",
		"service", "evolution",
		"attempt", 3,
		"backoff", 2*time.Second,
		"err", errors.New("tick failed"),
	)

	out := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"message":"service restarted"`,
		`"service":"evolution"`,
		`"attempt":3`,
		`"err":"tick failed"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestSlogHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandler(zerolog.New(&buf))).
		WithGroup("supervisor").
		WithGroup("tree").
		With("name", "root")

	logger.Warn("child failed", slog.Group("child", slog.String("id", "api")))

	out := buf.String()
	if !strings.Contains(out, `"supervisor.tree.name":"root"`) {
		t.Errorf("group prefix wrong: %s", out)
	}
	if !strings.Contains(out, `"supervisor.tree.child.id":"api"`) {
		t.Errorf("nested group wrong: %s", out)
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := NewSlogHandler(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	ctx := context.Background()
	if h.Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled on warn logger")
	}
	if !h.Enabled(ctx, slog.LevelError) {
		t.Error("error disabled on warn logger")
	}
}

func TestToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := toZerologLevel(tt.in); got != tt.want {
			t.Errorf("toZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
