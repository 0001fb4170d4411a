package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process ledger keeping balances in a map. It is safe for
// concurrent use. Balances do not survive a restart, which is acceptable for
// demos and tests only.
type Memory struct {
	mu       sync.Mutex
	balances map[string]int64
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]int64),
	}
}

// Allocate implements Ledger.
func (m *Memory) Allocate(_ context.Context, address string, credits int64) error {
	if credits < 0 {
		return fmt.Errorf("ledger: negative allocation of %d credits for %s", credits, address)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[address] += credits
	return nil
}

// Balance returns the accumulated credits for an address.
func (m *Memory) Balance(address string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[address]
}
