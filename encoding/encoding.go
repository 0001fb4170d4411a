// Package encoding provides the transport encoding for x402 payment data.
// Proofs and acknowledgments travel as standard base64 of their UTF-8 JSON
// text, in the X-PAYMENT and X-PAYMENT-RESPONSE headers respectively.
package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/neverlabs/x402-credits-go"
)

// proofFields are the required keys of a payment proof. A decoded proof
// missing any of them is a malformed proof, not a decoding crash.
var proofFields = []string{"from", "to", "asset", "amount", "tx", "network"}

// EncodeProof converts a PaymentProof to a base64-encoded JSON string for
// the X-PAYMENT header.
//
// Returns an error if JSON marshaling fails.
func EncodeProof(proof x402.PaymentProof) (string, error) {
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return "", fmt.Errorf("failed to marshal proof: %w", err)
	}
	return base64.StdEncoding.EncodeToString(proofJSON), nil
}

// DecodeProof converts a base64-encoded JSON string to a PaymentProof.
// Addresses are treated as opaque case-insensitive strings at this layer; no
// checksum validation is performed.
//
// Returns an error wrapping x402.ErrMalformedProof when the value is not
// valid base64, not well-formed JSON, or missing a required field.
func DecodeProof(encoded string) (x402.PaymentProof, error) {
	var proof x402.PaymentProof

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return proof, fmt.Errorf("%w: failed to decode base64: %v", x402.ErrMalformedProof, err)
	}

	// Presence is checked against the raw object so that an explicit empty
	// string still counts as present, matching the reference behavior.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(decoded, &raw); err != nil {
		return proof, fmt.Errorf("%w: failed to unmarshal proof: %v", x402.ErrMalformedProof, err)
	}
	for _, field := range proofFields {
		if _, ok := raw[field]; !ok {
			return proof, fmt.Errorf("%w: missing required field %q", x402.ErrMalformedProof, field)
		}
	}

	if err := json.Unmarshal(decoded, &proof); err != nil {
		return proof, fmt.Errorf("%w: failed to unmarshal proof: %v", x402.ErrMalformedProof, err)
	}

	return proof, nil
}

// EncodeAcknowledgment converts an Acknowledgment to a base64-encoded JSON
// string for the X-PAYMENT-RESPONSE header.
//
// Returns an error if JSON marshaling fails.
func EncodeAcknowledgment(ack x402.Acknowledgment) (string, error) {
	ackJSON, err := json.Marshal(ack)
	if err != nil {
		return "", fmt.Errorf("failed to marshal acknowledgment: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ackJSON), nil
}

// DecodeAcknowledgment converts a base64-encoded JSON string to an
// Acknowledgment.
//
// Returns an error if base64 decoding or JSON unmarshaling fails.
func DecodeAcknowledgment(encoded string) (x402.Acknowledgment, error) {
	var ack x402.Acknowledgment

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return ack, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(decoded, &ack); err != nil {
		return ack, fmt.Errorf("failed to unmarshal acknowledgment: %w", err)
	}

	return ack, nil
}
