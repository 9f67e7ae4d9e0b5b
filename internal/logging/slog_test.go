package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestSlogLoggerLevels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		log   func(l Logger)
		level string
	}{
		{"debug", func(l Logger) { l.Debug(ctx, "m") }, "DEBUG"},
		{"info", func(l Logger) { l.Info(ctx, "m") }, "INFO"},
		{"warn", func(l Logger) { l.Warn(ctx, "m") }, "WARN"},
		{"error", func(l Logger) { l.Error(ctx, "m") }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufLogger(t)
			tt.log(l)
			rec := lastRecord(t, buf)
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, "m", rec["msg"])
		})
	}
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewJSON(buf)

	l.Info(context.Background(), "started", "addr", ":8080")

	rec := lastRecord(t, buf)
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, ":8080", rec["addr"])
}

func TestSlogLoggerWith(t *testing.T) {
	l, buf := newBufLogger(t)

	child := l.With("module", "vault")
	child.Info(context.Background(), "hello", "item_id", "42")

	rec := lastRecord(t, buf)
	assert.Equal(t, "vault", rec["module"])
	assert.Equal(t, "42", rec["item_id"])
}
