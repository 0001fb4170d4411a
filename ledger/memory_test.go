package ledger

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryAllocate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Allocate(ctx, "0xabc", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Allocate(ctx, "0xabc", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Balance("0xabc"); got != 15 {
		t.Errorf("expected accumulated balance 15, got %d", got)
	}
	if got := m.Balance("0xdef"); got != 0 {
		t.Errorf("expected zero balance for unknown address, got %d", got)
	}
}

func TestMemoryRejectsNegative(t *testing.T) {
	m := NewMemory()
	if err := m.Allocate(context.Background(), "0xabc", -1); err == nil {
		t.Error("expected error for negative allocation")
	}
	if got := m.Balance("0xabc"); got != 0 {
		t.Errorf("failed allocation must not change the balance, got %d", got)
	}
}

func TestMemoryConcurrentAllocations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Allocate(ctx, "0xabc", 1)
		}()
	}
	wg.Wait()

	if got := m.Balance("0xabc"); got != 50 {
		t.Errorf("expected 50 after concurrent allocations, got %d", got)
	}
}

func TestFuncAdapter(t *testing.T) {
	var gotAddress string
	var gotCredits int64
	l := Func(func(_ context.Context, address string, credits int64) error {
		gotAddress = address
		gotCredits = credits
		return nil
	})

	if err := l.Allocate(context.Background(), "0xabc", 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddress != "0xabc" || gotCredits != 7 {
		t.Errorf("adapter did not pass arguments through: %s %d", gotAddress, gotCredits)
	}
}
