package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	_, span := p.TraceLoad(context.Background(), "id", "/tmp/a.log", "text")
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should produce invalid span contexts")
	}
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTraceLoadAndReload(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	p := FromTracerProvider(tp)

	ctx, span := p.TraceLoad(context.Background(), "id-1", "/var/log/app.log", "text")
	RecordError(ctx, errors.New("boom"))
	span.End()

	_, span = p.TraceReload(context.Background(), "id-1", "/var/log/app.log")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Name() != "ingest.load" || ended[1].Name() != "ingest.reload" {
		t.Errorf("span names = %s, %s", ended[0].Name(), ended[1].Name())
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("load span status = %v, want error", ended[0].Status().Code)
	}

	var found bool
	for _, attr := range ended[0].Attributes() {
		if string(attr.Key) == "source.path" && attr.Value.AsString() == "/var/log/app.log" {
			found = true
		}
	}
	if !found {
		t.Error("source.path attribute missing")
	}
}

func TestOrNoop(t *testing.T) {
	if OrNoop(nil) == nil {
		t.Fatal("OrNoop(nil) returned nil")
	}
	p := Noop()
	if OrNoop(p) != p {
		t.Error("OrNoop should return the given provider")
	}
}
