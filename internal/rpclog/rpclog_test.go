package rpclog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	h := slog.NewTextHandler(buf, nil)
	return &Logger{base: slog.New(h)}
}

func TestWithConnectionAddsField(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)
	id := uuid.New()

	l.WithConnection(id).Info(context.Background(), "hello")

	if !strings.Contains(buf.String(), id.String()) {
		t.Errorf("expected log line to contain connection id, got %q", buf.String())
	}
}

func TestWithSessionNilLeavesLoggerUnchanged(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	scoped := l.WithSession(nil)
	scoped.Info(context.Background(), "hello")

	if strings.Contains(buf.String(), "session=") {
		t.Errorf("expected no session field when id is nil, got %q", buf.String())
	}
}

func TestWithMethodAddsField(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf)

	l.WithMethod("select").Info(context.Background(), "dispatching")

	if !strings.Contains(buf.String(), "method=select") {
		t.Errorf("expected method field in log line, got %q", buf.String())
	}
}
