
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	s *slog.Logger
}

// New logs text at info level to stderr.
func New() *Logger { return NewWith(os.Stderr, "info", "text") }

// NewWith builds a logger writing to w. format is "json" or "text"; level is
// one of debug, info, warn, error.
func NewWith(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{s: slog.New(h)}
}

// Discard drops everything; used by tests.
func Discard() *Logger { return &Logger{s: slog.New(slog.NewTextHandler(io.Discard, nil))} }

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the structured logger for key/value logging.
func (l *Logger) Slog() *slog.Logger { return l.s }

// With returns a logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger { return &Logger{s: l.s.With(args...)} }

func (l *Logger) Debugf(format string, args ...any) {
	l.s.Debug(fmt.Sprintf(format, args...))
}
func (l *Logger) Infof(format string, args ...any) {
	l.s.Info(fmt.Sprintf(format, args...))
}
func (l *Logger) Warnf(format string, args ...any) {
	l.s.Warn(fmt.Sprintf(format, args...))
}
func (l *Logger) Errorf(format string, args ...any) {
	l.s.Error(fmt.Sprintf(format, args...))
}
