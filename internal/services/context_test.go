package services_test

import (
	"context"
	"testing"

	"emotrack/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithCycle(ctx, 7)
	ctx = services.WithService(ctx, "inference")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if cycle, ok := services.CycleFromContext(ctx); !ok || cycle != 7 {
		t.Fatalf("unexpected cycle: %v %v", cycle, ok)
	}
	if svc, ok := services.ServiceFromContext(ctx); !ok || svc != "inference" {
		t.Fatalf("unexpected service: %v %v", svc, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "")
	ctx = services.WithService(ctx, "")
	if _, ok := services.SessionIDFromContext(ctx); ok {
		t.Fatal("expected no session id")
	}
	if _, ok := services.ServiceFromContext(ctx); ok {
		t.Fatal("expected no service")
	}
	if _, ok := services.CycleFromContext(ctx); ok {
		t.Fatal("expected no cycle")
	}
}
