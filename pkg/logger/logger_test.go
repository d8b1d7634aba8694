package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_RejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.log")

	log, err := New(Options{Level: "info", Format: "console", File: path})
	require.NoError(t, err)

	log.Info("call joined", zap.String("meeting_id", "m-1"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"meeting_id":"m-1"`)
}

func TestContextLogger_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cl := NewContextLogger(zap.New(core))

	ctx := WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithValue(ctx, MeetingIDKey, "m-7")

	cl.LogRequest(ctx, "GET", "/api/v1/call", 200, 12)
	cl.Sugared(context.Background()).Warnw("render failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "m-7", fields["meeting_id"])
	assert.Equal(t, int64(200), fields["status_code"])

	assert.Equal(t, "render failed", entries[1].Message)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}
