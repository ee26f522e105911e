package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// TestMiddleware_WrapSuccess verifies a successful execution is logged and counted.
func TestMiddleware_WrapSuccess(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mw := NewMiddleware(NewNoopTracer(), metrics, logger)

	called := false
	fn := mw.Wrap(func(ctx context.Context, meta OpMeta) error {
		called = true
		return nil
	})

	meta := OpMeta{Name: "read_file", Category: "file_read"}
	if err := fn(context.Background(), meta); err != nil {
		t.Fatalf("wrapped fn: %v", err)
	}
	if !called {
		t.Fatal("wrapped function was not invoked")
	}

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if logEntry["msg"] != "operation completed" {
		t.Errorf("expected completion log, got %v", logEntry["msg"])
	}
	if logEntry["op.name"] != "read_file" {
		t.Errorf("expected op.name=read_file, got %v", logEntry["op.name"])
	}

	rm := collect(t, reader)
	if got := sumValue(t, rm, "op.exec.total"); got != 1 {
		t.Errorf("expected 1 execution, got %d", got)
	}
}

// TestMiddleware_WrapError verifies errors propagate unchanged and are logged.
func TestMiddleware_WrapError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mw := NewMiddleware(NewNoopTracer(), metrics, logger)

	wantErr := errors.New("backend unavailable")
	fn := mw.Wrap(func(ctx context.Context, meta OpMeta) error {
		return wantErr
	})

	err = fn(context.Background(), OpMeta{Name: "ai_assist", Category: "assist"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error to propagate, got %v", err)
	}

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if logEntry["msg"] != "operation failed" {
		t.Errorf("expected failure log, got %v", logEntry["msg"])
	}
	if logEntry["error"] != "backend unavailable" {
		t.Errorf("expected error field, got %v", logEntry["error"])
	}

	rm := collect(t, reader)
	if got := sumValue(t, rm, "op.exec.errors"); got != 1 {
		t.Errorf("expected 1 error recorded, got %d", got)
	}
}

// TestMiddlewareFromObserver verifies convenience construction.
func TestMiddlewareFromObserver(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "localops"})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	mw, err := MiddlewareFromObserver(obs)
	if err != nil {
		t.Fatalf("MiddlewareFromObserver: %v", err)
	}
	if mw == nil {
		t.Fatal("expected middleware, got nil")
	}

	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("expected ErrNilObserver, got %v", err)
	}
}
