package x402

import (
	"fmt"
	"time"
)

// TimeoutConfig holds timeout configuration for payment operations.
type TimeoutConfig struct {
	// SubmitTimeout is the maximum time to wait for transfer submission.
	SubmitTimeout time.Duration

	// ConfirmTimeout is the maximum time to wait for on-chain confirmation.
	// Confirmation is network-dependent and can be slow on congested chains.
	ConfirmTimeout time.Duration

	// RequestTimeout is the overall timeout for plain HTTP requests.
	RequestTimeout time.Duration
}

// DefaultTimeouts provides sensible defaults for payment operations.
var DefaultTimeouts = TimeoutConfig{
	SubmitTimeout:  30 * time.Second,
	ConfirmTimeout: 120 * time.Second,
	RequestTimeout: 30 * time.Second,
}

// WithSubmitTimeout returns a new TimeoutConfig with updated submit timeout.
func (tc TimeoutConfig) WithSubmitTimeout(d time.Duration) TimeoutConfig {
	tc.SubmitTimeout = d
	return tc
}

// WithConfirmTimeout returns a new TimeoutConfig with updated confirm timeout.
func (tc TimeoutConfig) WithConfirmTimeout(d time.Duration) TimeoutConfig {
	tc.ConfirmTimeout = d
	return tc
}

// WithRequestTimeout returns a new TimeoutConfig with updated request timeout.
func (tc TimeoutConfig) WithRequestTimeout(d time.Duration) TimeoutConfig {
	tc.RequestTimeout = d
	return tc
}

// Validate ensures timeout values are reasonable.
func (tc TimeoutConfig) Validate() error {
	if tc.SubmitTimeout <= 0 {
		return fmt.Errorf("submit timeout must be positive, got %v", tc.SubmitTimeout)
	}
	if tc.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm timeout must be positive, got %v", tc.ConfirmTimeout)
	}
	if tc.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", tc.RequestTimeout)
	}
	if tc.ConfirmTimeout < tc.SubmitTimeout {
		return fmt.Errorf("confirm timeout (%v) should be >= submit timeout (%v)",
			tc.ConfirmTimeout, tc.SubmitTimeout)
	}
	return nil
}
