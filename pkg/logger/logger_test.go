package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestFromContextAddsRequestAndActor(t *testing.T) {
	var buf bytes.Buffer
	base := New(&Config{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithActor(ctx, Actor{ID: "u2", Role: "analyst"})

	FromContext(ctx, base).Info("step completed", "case_id", "SOS-4001")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "u2", line["actor_id"])
	assert.Equal(t, "analyst", line["role"])
	assert.Equal(t, "SOS-4001", line["case_id"])
}

func TestFromContextWithoutValuesReturnsBase(t *testing.T) {
	base := Discard()
	assert.Same(t, base, FromContext(context.Background(), base))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&Config{Level: "debug", Format: "text", Output: &buf}).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
