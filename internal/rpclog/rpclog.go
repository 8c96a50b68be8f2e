// Package rpclog is a thin log/slog wrapper that carries connection,
// session, and method fields across a request's lifetime without every
// call site having to repeat them.
package rpclog

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps a slog.Logger that already has zero or more scoped fields
// bound via With.
type Logger struct {
	base *slog.Logger
}

// New builds a Logger writing structured text to stderr at the given level.
func New(level slog.Level) *Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{base: slog.New(h)}
}

// WithConnection scopes every subsequent log line to a connection id.
func (l *Logger) WithConnection(id uuid.UUID) *Logger {
	return &Logger{base: l.base.With("conn", id.String())}
}

// WithSession scopes every subsequent log line to a session id, or leaves
// the logger unchanged when id is nil (the connection's default session).
func (l *Logger) WithSession(id *uuid.UUID) *Logger {
	if id == nil {
		return l
	}
	return &Logger{base: l.base.With("session", id.String())}
}

// WithMethod scopes every subsequent log line to an RPC method name.
func (l *Logger) WithMethod(method string) *Logger {
	return &Logger{base: l.base.With("method", method)}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.base.DebugContext(ctx, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.base.InfoContext(ctx, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.base.WarnContext(ctx, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.base.ErrorContext(ctx, msg, args...)
}
