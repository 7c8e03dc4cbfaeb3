package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := NewContext(context.Background(), &TraceContext{
		TraceID:   "trace-123",
		RunID:     "run-456",
		SessionID: "s1",
		Turn:      2,
	})

	traced := LoggerFromContext(ctx, logger)
	traced.Info().Msg("test message")

	out := buf.String()
	for _, want := range []string{`"trace_id":"trace-123"`, `"run_id":"run-456"`, `"session_id":"s1"`, `"turn":2`} {
		if !strings.Contains(out, want) {
			t.Errorf("Log output missing %s: %s", want, out)
		}
	}
}

func TestLoggerFromContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	plain := LoggerFromContext(context.Background(), logger)
	plain.Info().Msg("plain")

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("Expected no tracing fields, got %s", buf.String())
	}
}

func TestMergeContext(t *testing.T) {
	source := NewContext(context.Background(), &TraceContext{
		TraceID:   "trace-123",
		RunID:     "run-456",
		SessionID: "s1",
	})

	merged := MergeContext(context.Background(), source)

	if GetTraceID(merged) != "trace-123" {
		t.Error("Trace ID not merged")
	}
	if GetRunID(merged) != "run-456" {
		t.Error("Run ID not merged")
	}
	if GetSessionID(merged) != "s1" {
		t.Error("Session ID not merged")
	}
}

func TestMergeContextNoOverwrite(t *testing.T) {
	target := WithTraceID(context.Background(), "target-trace")
	source := WithTraceID(context.Background(), "source-trace")

	merged := MergeContext(target, source)

	if GetTraceID(merged) != "target-trace" {
		t.Error("MergeContext should not overwrite existing values")
	}
}

func TestCloneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(NewRunContext(context.Background(), "run_1", "s1"))
	cancel()

	cloned := CloneContext(ctx)

	if cloned.Err() != nil {
		t.Error("Cloned context should not inherit cancellation")
	}
	if GetRunID(cloned) != "run_1" || GetSessionID(cloned) != "s1" {
		t.Error("Cloned context lost tracing values")
	}
}

func TestStartSpanSetsTraceID(t *testing.T) {
	ctx := NewRunContext(context.Background(), "run_1", "s1")
	ctx, span := StartSpan(ctx, TracerAgent, "test")
	defer EndSpan(span, nil)

	if GetTraceID(ctx) == "" {
		t.Error("StartSpan should keep a trace ID on the context")
	}
}
