// Package logger wraps slog for the goGate binaries.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the process logger.
type Logger struct {
	*slog.Logger
}

// New returns a text logger on stdout at level.
func New(level int) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter returns a text logger writing to w.
func NewWithWriter(w io.Writer, level int) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.Level(level)})),
	}
}

// Fatal is equivalent to Error followed by os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}
