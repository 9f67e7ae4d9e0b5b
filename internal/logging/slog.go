package logging

import (
	"context"
	"io"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the Logger interface. Construct one
// with NewSlogLogger or NewJSON; the zero value has no handler.
type SlogLogger struct {
	l *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger wraps an existing slog logger.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewJSON builds a logger that writes one JSON record per line to w, the
// format the server emits in production.
func NewJSON(w io.Writer) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil)))
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

// With returns a child logger carrying the given key-value pairs on every
// record it emits.
func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
