// Package hooks provides Logger, Hook, metrics and slot observer
// implementations.
package hooks

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openann19/petphotos/core"
)

// ── slog adapter ──────────────────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── zerolog adapter ───────────────────────────────────────────────────────────

// ZerologLogger adapts a zerolog.Logger to core.Logger. Fields are key/value
// pairs; a trailing key without a value is dropped.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger builds a zerolog logger writing to w. format is "json" or
// "console"; level is one of debug, info, warn, error.
func NewZerologLogger(w io.Writer, level, format string) *ZerologLogger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &ZerologLogger{log: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// FromZerolog wraps an existing zerolog.Logger.
func FromZerolog(l zerolog.Logger) *ZerologLogger { return &ZerologLogger{log: l} }

func (z *ZerologLogger) Debug(msg string, fields ...interface{}) {
	z.emit(z.log.Debug(), msg, fields)
}
func (z *ZerologLogger) Info(msg string, fields ...interface{}) {
	z.emit(z.log.Info(), msg, fields)
}
func (z *ZerologLogger) Warn(msg string, fields ...interface{}) {
	z.emit(z.log.Warn(), msg, fields)
}
func (z *ZerologLogger) Error(msg string, fields ...interface{}) {
	z.emit(z.log.Error(), msg, fields)
}

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if err, isErr := fields[i+1].(error); isErr {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(msg)
}

// ── no-op ─────────────────────────────────────────────────────────────────────

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

var (
	_ core.Logger = (*SlogLogger)(nil)
	_ core.Logger = (*ZerologLogger)(nil)
	_ core.Logger = NopLogger{}
)
