package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
}

func TestSpansShareRequestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug")

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")

	ctx, root := StartSpan(ctx, "root")
	_, child := StartSpan(ctx, "child")

	if root.TraceID != "req-1" || child.TraceID != "req-1" {
		t.Fatalf("expected spans to reuse request id, got %q and %q", root.TraceID, child.TraceID)
	}

	child.Fail(errors.New("boom"))
	child.End()
	root.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines got %d: %s", len(lines), buf.String())
	}

	var childEntry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &childEntry); err != nil {
		t.Fatalf("decode child log: %v", err)
	}
	if childEntry["level"] != "ERROR" || childEntry["parentSpanId"] != root.ID || childEntry["traceId"] != "req-1" {
		t.Fatalf("unexpected child log entry: %v", childEntry)
	}
}

func TestSpanEndIsNilSafe(t *testing.T) {
	var span *Span
	span.Fail(errors.New("ignored"))
	span.End()
}
