package x402

import "time"

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a payment is being attempted.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventSuccess indicates a payment succeeded.
	PaymentEventSuccess PaymentEventType = "success"

	// PaymentEventFailure indicates a payment failed.
	PaymentEventFailure PaymentEventType = "failure"
)

// PaymentEvent represents a payment lifecycle event emitted by the client
// transport, for logging, monitoring, and debugging.
type PaymentEvent struct {
	// Type is the event type (attempt, success, failure).
	Type PaymentEventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// URL is the resource URL being accessed.
	URL string

	// Amount is the payment amount in atomic units.
	Amount string

	// Asset is the token contract address.
	Asset string

	// Network is the blockchain network identifier.
	Network string

	// Scheme is the payment scheme (e.g., "exact").
	Scheme string

	// Recipient is the payment recipient address.
	Recipient string

	// Payer is the address that made the payment (available on success).
	Payer string

	// Transaction is the on-chain transaction id (available on success).
	Transaction string

	// Error contains error details (available on failure).
	Error error

	// Duration is the time taken for the payment operation.
	Duration time.Duration
}

// PaymentCallback is a function that handles payment events.
// Callbacks are invoked synchronously during payment processing, so they
// should be fast to avoid blocking the payment flow.
type PaymentCallback func(PaymentEvent)
