// Package helpers provides shared helper functions for the x402 HTTP
// middleware implementations. They are used by the stdlib and Gin payment
// gates to ensure consistent protocol behavior.
package helpers

import (
	"encoding/json"
	"net/http"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/encoding"
)

// BypassHeader is the development-only header that marks a request as
// pre-paid when the deployment's dev mode is enabled.
const BypassHeader = "X-DEV-BYPASS-PAYMENT"

// ErrorResponse is the structured JSON body for 400 and 500 responses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ParseProofHeader parses the X-PAYMENT header from a request.
//
// Returns (nil, nil) when the header is absent; "no payment yet" is a
// protocol state, not a malformed request. Returns an error wrapping
// x402.ErrMalformedProof when the header is present but undecodable.
func ParseProofHeader(r *http.Request) (*x402.PaymentProof, error) {
	headerValue := r.Header.Get("X-PAYMENT")
	if headerValue == "" {
		return nil, nil
	}

	proof, err := encoding.DecodeProof(headerValue)
	if err != nil {
		return nil, err
	}
	return &proof, nil
}

// BypassRequested reports whether the request carries a bypass signal,
// either the dev header or the bypass query parameter. The caller is
// responsible for gating this on the deployment's dev-mode flag.
func BypassRequested(r *http.Request) bool {
	if r.Header.Get(BypassHeader) == "true" {
		return true
	}
	return r.URL.Query().Get("bypass") == "true"
}

// SendPaymentRequired sends a 402 Payment Required response with the payment
// requirements in JSON format. msg is set as the body's error field when
// non-empty, to distinguish "no payment yet" from a rejected proof.
func SendPaymentRequired(w http.ResponseWriter, requirements []x402.PaymentRequirement, msg string) {
	response := x402.PaymentRequirementsResponse{
		X402Version: x402.Version,
		Error:       msg,
		Accepts:     requirements,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	// Ignore encoding errors - headers are already sent with 402 status
	_ = json.NewEncoder(w).Encode(response)
}

// SendError sends a structured JSON error body with the given status code.
func SendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: msg})
}

// AcknowledgmentHeader encodes the X-PAYMENT-RESPONSE header value for an
// accepted payment.
func AcknowledgmentHeader(tx, facilitator, payer string) (string, error) {
	return encoding.EncodeAcknowledgment(x402.Acknowledgment{
		Success: true,
		Payment: x402.AckPayment{
			Tx:          tx,
			Facilitator: facilitator,
			Payer:       payer,
		},
	})
}
