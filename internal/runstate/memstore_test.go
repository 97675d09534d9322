package runstate

import (
	"context"
	"testing"
)

func TestMemStore_MarkActiveThenCancel(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if err := s.MarkActive(ctx, "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancelled, err := s.IsCancelled(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled {
		t.Fatal("expected run-1 not to be cancelled yet")
	}

	if err := s.MarkCancelled(ctx, "run-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancelled, _ = s.IsCancelled(ctx, "run-1")
	if !cancelled {
		t.Fatal("expected run-1 to be cancelled")
	}
}

func TestMemStore_UnregisterClearsState(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	_ = s.MarkActive(ctx, "run-2")
	_ = s.Unregister(ctx, "run-2")
	cancelled, _ := s.IsCancelled(ctx, "run-2")
	if cancelled {
		t.Fatal("unregistered run should report not-cancelled")
	}
}

func TestMemStore_CancelUnknownRunIsIdempotent(t *testing.T) {
	s := NewMemStore()
	if err := s.MarkCancelled(context.Background(), "never-registered"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
