// Package validation decides whether a presented payment proof satisfies a
// payment requirement. Two named policies exist: strict field matching (used
// by the credits endpoint) and presence-only (used by the premium-content
// endpoint). They are deliberately separate, never silently upgraded, because
// changing policy changes observable protocol behavior.
package validation

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/neverlabs/x402-credits-go"
)

// evmAddressRegex matches Ethereum-style addresses (0x followed by 40 hex chars)
var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Policy selects how a proof is checked against a requirement.
type Policy int

const (
	// PolicyStrict checks the proof's recipient and asset against the
	// requirement, case-insensitively and in that order.
	PolicyStrict Policy = iota

	// PolicyPresenceOnly accepts any present proof without field checks.
	// This reproduces the reference premium-content behavior exactly.
	PolicyPresenceOnly
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyPresenceOnly:
		return "presence-only"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Options enables hardened checks the reference server omits. Both default
// to off, which is the faithful compatibility mode; enabling them is an
// explicit, documented policy decision.
type Options struct {
	// RequireAmount rejects proofs whose amount is below the requirement's
	// maxAmountRequired.
	RequireAmount bool

	// RequireNetwork rejects proofs whose network doesn't match the
	// requirement's network.
	RequireNetwork bool
}

// Validate checks a proof against a requirement under the given policy.
// A nil proof means no proof was presented.
//
// Returns nil when the proof satisfies the requirement. Returns
// x402.ErrPaymentRequired when no proof is present, or a rejection error
// naming the first failed check: x402.ErrWrongRecipient, x402.ErrWrongAsset,
// and under hardened Options x402.ErrWrongAmount or x402.ErrWrongNetwork.
func Validate(policy Policy, proof *x402.PaymentProof, req x402.PaymentRequirement, opts Options) error {
	if proof == nil {
		return x402.ErrPaymentRequired
	}

	if policy == PolicyPresenceOnly {
		return nil
	}

	// Checks run in a fixed order and the first failure wins, so rejection
	// reasons stay stable for diagnostics.
	if !strings.EqualFold(proof.To, req.PayTo) {
		return fmt.Errorf("%w: %s vs %s", x402.ErrWrongRecipient, proof.To, req.PayTo)
	}

	if !strings.EqualFold(proof.Asset, req.Asset) {
		return fmt.Errorf("%w: %s vs %s", x402.ErrWrongAsset, proof.Asset, req.Asset)
	}

	if opts.RequireAmount {
		paid, ok := new(big.Int).SetString(proof.Amount, 10)
		if !ok {
			return fmt.Errorf("%w: unparseable amount %q", x402.ErrWrongAmount, proof.Amount)
		}
		required, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
		if !ok {
			return fmt.Errorf("%w: unparseable required amount %q", x402.ErrWrongAmount, req.MaxAmountRequired)
		}
		if paid.Cmp(required) < 0 {
			return fmt.Errorf("%w: %s < %s", x402.ErrWrongAmount, proof.Amount, req.MaxAmountRequired)
		}
	}

	if opts.RequireNetwork && proof.Network != req.Network {
		return fmt.Errorf("%w: %s vs %s", x402.ErrWrongNetwork, proof.Network, req.Network)
	}

	return nil
}

// ValidateAmount validates that an amount string is a valid positive integer.
// Returns an error if the amount is empty, malformed, or not greater than zero.
func ValidateAmount(amount string) error {
	if amount == "" {
		return fmt.Errorf("amount cannot be empty")
	}

	amt, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid amount format: %s", amount)
	}

	if amt.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than 0, got: %s", amount)
	}

	return nil
}

// ValidateAddress validates an EVM address string.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !evmAddressRegex.MatchString(address) {
		return fmt.Errorf("invalid EVM address format: %s (expected 0x followed by 40 hex characters)", address)
	}
	return nil
}

// ValidateRequirement performs a sanity check of a server-issued payment
// requirement before the caller commits funds against it.
func ValidateRequirement(req x402.PaymentRequirement) error {
	if req.Scheme != x402.SchemeExact {
		return fmt.Errorf("invalid requirement: unsupported scheme %q", req.Scheme)
	}

	if err := x402.ValidateNetwork(req.Network); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	if err := ValidateAmount(req.MaxAmountRequired); err != nil {
		return fmt.Errorf("invalid requirement: %w", err)
	}

	if err := ValidateAddress(req.PayTo); err != nil {
		return fmt.Errorf("invalid requirement: payTo %w", err)
	}

	if err := ValidateAddress(req.Asset); err != nil {
		return fmt.Errorf("invalid requirement: asset %w", err)
	}

	if req.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("invalid requirement: timeout cannot be negative: %d", req.MaxTimeoutSeconds)
	}

	return nil
}
