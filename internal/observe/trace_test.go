package observe

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracer(t *testing.T) trace.Tracer {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer(tracerName)
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	tracer := newTestTracer(t)
	ctx, span := tracer.Start(context.Background(), "test")
	defer span.End()

	cid := CorrelationID(ctx)
	if cid == "" {
		t.Fatal("CorrelationID with active span is empty")
	}
	if cid != span.SpanContext().TraceID().String() {
		t.Errorf("CorrelationID = %q, want trace ID %q", cid, span.SpanContext().TraceID())
	}
}

func TestLoggerWithSpan(t *testing.T) {
	// Without a span the default logger comes back untouched.
	if Logger(context.Background()) == nil {
		t.Fatal("Logger returned nil")
	}

	tracer := newTestTracer(t)
	ctx, span := tracer.Start(context.Background(), "test")
	defer span.End()

	if Logger(ctx) == nil {
		t.Fatal("Logger with span returned nil")
	}
}
