package resource

import (
	"context"
	"testing"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/throttle/pkg/telemetry/logging"
)

func TestNewConnection_InvalidSite(t *testing.T) {
	tests := []string{
		"",
		"example.com",
		"ftp://example.com",
		"http://",
		"://bad",
	}

	for _, site := range tests {
		if _, err := NewConnection(site); err == nil {
			t.Errorf("NewConnection(%q) expected error", site)
		}
	}
}

func TestConnection_URL(t *testing.T) {
	conn, err := NewConnection("http://example.com/api/")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{"widgets.json", "http://example.com/api/widgets.json"},
		{"/widgets.json", "http://example.com/widgets.json"},
		{"widgets.json?page=2", "http://example.com/api/widgets.json?page=2"},
	}

	for _, tt := range tests {
		if got := conn.URL(tt.path); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestConnection_RequestID(t *testing.T) {
	site := newFakeSite(t)
	conn, _ := NewConnection(site.URL, WithConnectionLogger(quietLogger()))

	ctx := context.Background()
	if _, err := conn.Get(ctx, "/widgets.json"); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Get(logging.WithRequestID(ctx, "fixed-id"), "/widgets.json"); err != nil {
		t.Fatal(err)
	}

	site.mu.Lock()
	defer site.mu.Unlock()

	if _, err := uuid.Parse(site.requestIDs[0]); err != nil {
		t.Errorf("generated request ID %q is not a UUID", site.requestIDs[0])
	}
	if site.requestIDs[1] != "fixed-id" {
		t.Errorf("request ID from context not used, got %q", site.requestIDs[1])
	}
	if conn.Requests() != 2 {
		t.Errorf("Requests() = %d", conn.Requests())
	}
}

func TestConnection_TraceSpanAndPropagation(t *testing.T) {
	site := newFakeSite(t)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	conn, _ := NewConnection(site.URL,
		WithConnectionLogger(quietLogger()),
		WithConnectionTracer(provider.Tracer("test")),
		WithUserAgent("throttle-test"),
	)

	if _, err := conn.Get(context.Background(), "/broken.json"); err == nil {
		t.Fatal("expected error")
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "resource.request" || span.SpanKind() != trace.SpanKindClient {
		t.Errorf("unexpected span %s kind %v", span.Name(), span.SpanKind())
	}

	var status int64
	for _, attr := range span.Attributes() {
		if attr.Key == "http.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	if status != 500 {
		t.Errorf("http.status_code = %d, want 500", status)
	}

	site.mu.Lock()
	defer site.mu.Unlock()
	want := "00-" + span.SpanContext().TraceID().String() + "-" + span.SpanContext().SpanID().String() + "-01"
	if site.traceparents[0] != want {
		t.Errorf("traceparent = %q, want %q", site.traceparents[0], want)
	}
}
