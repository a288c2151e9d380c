package httputil

import (
	"context"
	"testing"
)

func TestTraceID_RoundTrip(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, "abc-123")
	if got := TraceID(ctx); got != "abc-123" {
		t.Fatalf("expected abc-123, got %q", got)
	}
}

func TestTraceID_AbsentReturnsEmpty(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
