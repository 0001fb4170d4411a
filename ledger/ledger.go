// Package ledger defines the credit ledger consumed by the credit-purchase
// endpoint, with an in-process implementation and an HTTP client for a
// remote ledger service.
package ledger

import "context"

// Ledger records credit allocations for paying wallet addresses.
type Ledger interface {
	// Allocate credits the address with the given number of credits.
	// Allocation is the commit point of a purchase: an error here means the
	// payment was accepted but no credits were granted.
	Allocate(ctx context.Context, address string, credits int64) error
}

// Func adapts a function to the Ledger interface.
type Func func(ctx context.Context, address string, credits int64) error

// Allocate implements Ledger.
func (f Func) Allocate(ctx context.Context, address string, credits int64) error {
	return f(ctx, address, credits)
}
