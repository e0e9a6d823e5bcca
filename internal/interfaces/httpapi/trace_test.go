package httpapi

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestShouldCreateHTTPAPISpan(t *testing.T) {
	for name, want := range map[string]bool{
		"httpapi.Handler.RunScan":          true,
		"httpapi.Handler.RunHealthCheck":   true,
		"httpapi.Handler.ListScrapedLinks": true,
		"httpapi.RequireAdminToken":        true,
		"httpapi.CORS":                     false,
		"httpapi.writeError":               false,
		"streamproxy.Handler.ServeHTTP":    false,
	} {
		if got := shouldCreateHTTPAPISpan(name); got != want {
			t.Fatalf("shouldCreateHTTPAPISpan(%q)=%v want=%v", name, got, want)
		}
	}
}

func TestStartSpan_RequiresRequestSpan(t *testing.T) {
	ctx := context.Background()
	got, span := startSpan(ctx, "httpapi.Handler.RunScan")
	if got != ctx || span.SpanContext().IsValid() {
		t.Fatalf("relay and health requests carry no request span and must stay untraced")
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{9},
		SpanID:     trace.SpanID{7},
		TraceFlags: trace.FlagsSampled,
	})
	traced := trace.ContextWithSpanContext(ctx, parent)

	_, skipped := startSpan(traced, "httpapi.CORS")
	if skipped.SpanContext().IsValid() {
		t.Fatalf("middleware spans are filtered even under a request span")
	}

	child, span := startSpan(traced, "httpapi.Handler.RunAssign")
	defer span.End()
	if trace.SpanContextFromContext(child).TraceID() != parent.TraceID() {
		t.Fatalf("handler span must join the request trace")
	}
}
