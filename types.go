package x402

import (
	"fmt"
	"time"
)

// Version is the x402 protocol version (currently 1).
const Version = 1

// TokenInfo is the optional descriptive metadata attached to a payment
// requirement's extra field. It is informational only and never load-bearing
// for validation.
type TokenInfo struct {
	// Name is the human-readable token name (e.g., "USD Coin").
	Name string `json:"name"`

	// Symbol is the token symbol (e.g., "USDC").
	Symbol string `json:"symbol"`

	// Decimals is the number of decimal places for the token.
	Decimals int `json:"decimals"`
}

// PaymentRequirement describes one payment option a server will accept,
// issued per resource in a 402 response.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier. Only "exact" is supported.
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier (e.g., "base-sepolia").
	Network string `json:"network"`

	// MaxAmountRequired is the payment amount in atomic units of the asset,
	// as a decimal integer string.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Resource is the absolute URL of the protected resource.
	Resource string `json:"resource"`

	// Description is an optional human-readable payment description.
	Description string `json:"description"`

	// MimeType is the content type of the protected resource.
	MimeType string `json:"mimeType"`

	// PayTo is the recipient address for the payment.
	PayTo string `json:"payTo"`

	// MaxTimeoutSeconds is the advisory validity window for the payment.
	// The reference server does not enforce it.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Asset is the token contract address.
	Asset string `json:"asset"`

	// Extra carries optional token metadata. May be nil.
	Extra *TokenInfo `json:"extra"`
}

// PaymentRequirementsResponse is the complete 402 response body.
type PaymentRequirementsResponse struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Error is an optional human-readable message, set when a presented
	// proof was rejected.
	Error string `json:"error,omitempty"`

	// Accepts is the list of payment options the server will accept.
	Accepts []PaymentRequirement `json:"accepts"`
}

// PaymentProof is the caller-supplied evidence of a completed transfer,
// transported base64-encoded in the X-PAYMENT header. All six fields are
// required; decoding a proof missing any of them fails.
type PaymentProof struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Asset is the token contract address the transfer was made in.
	Asset string `json:"asset"`

	// Amount is the transferred amount in atomic units.
	Amount string `json:"amount"`

	// Tx is the on-chain transaction identifier.
	Tx string `json:"tx"`

	// Network is the blockchain network identifier.
	Network string `json:"network"`
}

// Acknowledgment is the server's receipt for an accepted payment, transported
// base64-encoded in the X-PAYMENT-RESPONSE header of the 200 response.
type Acknowledgment struct {
	// Success is always true when the header is present.
	Success bool `json:"success"`

	// Payment carries the settlement details.
	Payment AckPayment `json:"payment"`
}

// AckPayment is the payment section of an Acknowledgment.
type AckPayment struct {
	// Tx is the on-chain transaction identifier, or a synthesized
	// placeholder id when the development bypass was used.
	Tx string `json:"tx"`

	// Facilitator is the attesting server's own base URL. This server acts
	// as its own facilitator.
	Facilitator string `json:"facilitator"`

	// Payer is the address that made the payment, echoed from the proof.
	Payer string `json:"payer"`
}

// PlaceholderTxID synthesizes a transaction identifier for bypassed payments.
// The value is the current unix-millisecond timestamp, hex encoded and
// left-padded to 64 digits, so it carries a long run of leading zeros that no
// real transaction hash would have.
func PlaceholderTxID() string {
	return fmt.Sprintf("0x%064x", time.Now().UnixMilli())
}
