package requestctx

import (
	"context"
	"testing"
)

func TestRequestValues(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetClientIP(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}
	ctx = WithClientIP(WithRequestID(ctx, "req-1"), "203.0.113.9")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := GetClientIP(ctx); got != "203.0.113.9" {
		t.Fatalf("expected client ip, got %q", got)
	}
}
