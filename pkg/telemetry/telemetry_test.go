package telemetry

import (
	"context"
	"testing"
)

func TestSetupWithoutTracing(t *testing.T) {
	ctx := context.Background()

	p, err := Setup(ctx, Config{
		ServiceName:    "rehoboam-test",
		ServiceVersion: "test",
		Environment:    "development",
		TracingEnabled: false,
		LogLevel:       "debug",
		LogFormat:      "text",
	})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if p.Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
	if p.tracerProvider != nil {
		t.Error("tracer provider should be nil when tracing is disabled")
	}

	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracerWithoutSetup(t *testing.T) {
	p := &Provider{}
	if p.Tracer("test") == nil {
		t.Error("Tracer() returned nil")
	}
}

func TestTraceIDFromContextEmpty(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("TraceIDFromContext() = %q, want empty", id)
	}
}
