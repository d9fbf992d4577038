package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLoggerLevels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{"level=INFO", "msg=inf", "b=2", "level=WARN", "c=3", "level=ERROR", "d=4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSlogLoggerWithAddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)
	child := log.With("component", "engine")
	child.Info(context.Background(), "hello")

	if !strings.Contains(buf.String(), "component=engine") {
		t.Fatalf("expected component attribute, got:\n%s", buf.String())
	}
}

func TestNilSlogIsNop(t *testing.T) {
	log := NewSlogLogger(nil)
	if _, ok := log.(Nop); !ok {
		t.Fatalf("expected Nop logger, got %T", log)
	}
	log.With("a", 1).Error(context.Background(), "ignored")
}
