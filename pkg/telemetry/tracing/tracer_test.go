package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"mercator-hq/custodian/pkg/config"
)

func TestNew_Disabled(t *testing.T) {
	tr, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if tr.Enabled() {
		t.Error("Expected tracer to be disabled")
	}

	ctx, span := tr.Start(context.Background(), "op")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("Expected no trace id from a noop span")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() failed: %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, "test"); err == nil {
		t.Fatal("Expected error for nil config")
	}
}

func TestNew_InvalidRatio(t *testing.T) {
	_, err := New(&config.TracingConfig{Enabled: true, Endpoint: "localhost:4317", SampleRatio: 1.5}, "test")
	if err == nil {
		t.Fatal("Expected error for sample ratio above 1")
	}
}

// TestInjectExtract tests that trace context survives a round trip through headers.
func TestInjectExtract(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "client")
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("Expected traceparent header")
	}

	got := TraceID(Extract(context.Background(), headers))
	if want := span.SpanContext().TraceID().String(); got != want {
		t.Errorf("Expected trace id %s, got %s", want, got)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("Expected handler to see trace %s, got %q", traceID, seen)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != traceID {
		t.Errorf("Expected X-Trace-ID %s, got %q", traceID, got)
	}
}
