package x402

import "errors"

// Server-side error definitions.
var (
	// ErrPaymentRequired indicates that no payment proof accompanied the
	// request. This is a protocol state, not a fault.
	ErrPaymentRequired = errors.New("payment required")

	// ErrMalformedProof indicates the X-PAYMENT header could not be decoded
	// into a complete payment proof.
	ErrMalformedProof = errors.New("malformed payment proof")

	// ErrWrongRecipient indicates the proof's recipient doesn't match the
	// requirement's payTo address.
	ErrWrongRecipient = errors.New("payment sent to wrong recipient")

	// ErrWrongAsset indicates the proof's token doesn't match the
	// requirement's asset address.
	ErrWrongAsset = errors.New("payment made in wrong token")

	// ErrWrongAmount indicates the proof's amount is below the required
	// amount. Only checked when hardened validation is enabled.
	ErrWrongAmount = errors.New("payment amount below required amount")

	// ErrWrongNetwork indicates the proof's network doesn't match the
	// requirement's network. Only checked when hardened validation is enabled.
	ErrWrongNetwork = errors.New("payment made on wrong network")

	// ErrAllocationFailed indicates the payment was accepted but the ledger
	// write failed. This is an operational problem, not a client problem.
	ErrAllocationFailed = errors.New("credit allocation failed")
)

// Caller-side error definitions.
var (
	// ErrNoPaymentOptions indicates the 402 response carried no accepted
	// payment requirements.
	ErrNoPaymentOptions = errors.New("no payment options available")

	// ErrUnsupportedRequirement indicates the offered requirement's network
	// or scheme doesn't match the single supported combination.
	ErrUnsupportedRequirement = errors.New("unsupported payment requirement")

	// ErrTransferSubmission indicates the on-chain transfer could not be
	// signed or submitted.
	ErrTransferSubmission = errors.New("transfer submission failed")

	// ErrTransferNotConfirmed indicates the settlement network reported
	// non-success finality for the submitted transfer.
	ErrTransferNotConfirmed = errors.New("transfer not confirmed")

	// ErrVerificationFailed indicates the server rejected the retried
	// request that carried the payment proof.
	ErrVerificationFailed = errors.New("payment verification failed")

	// ErrLedgerUnavailable indicates the ledger service could not be reached.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// Wallet configuration error definitions.
var (
	// ErrInvalidAmount indicates an invalid amount string.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidKey indicates an invalid private key.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidNetwork indicates an unsupported blockchain network.
	ErrInvalidNetwork = errors.New("invalid or unsupported network")

	// ErrInvalidKeystore indicates an invalid or corrupted keystore file.
	ErrInvalidKeystore = errors.New("invalid keystore file")

	// ErrInvalidMnemonic indicates an invalid BIP39 mnemonic phrase.
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")
)

// ErrorCode represents payment error codes for programmatic handling.
type ErrorCode string

const (
	// ErrCodeNoPaymentOptions indicates an empty or absent accepts list.
	ErrCodeNoPaymentOptions ErrorCode = "NO_PAYMENT_OPTIONS"

	// ErrCodeUnsupportedRequirement indicates a network/scheme mismatch.
	ErrCodeUnsupportedRequirement ErrorCode = "UNSUPPORTED_REQUIREMENT"

	// ErrCodeInvalidRequirements indicates malformed server requirements.
	ErrCodeInvalidRequirements ErrorCode = "INVALID_REQUIREMENTS"

	// ErrCodeTransferSubmission indicates the transfer could not be submitted.
	ErrCodeTransferSubmission ErrorCode = "TRANSFER_SUBMISSION_FAILED"

	// ErrCodeTransferNotConfirmed indicates non-success transfer finality.
	ErrCodeTransferNotConfirmed ErrorCode = "TRANSFER_NOT_CONFIRMED"

	// ErrCodeVerificationFailed indicates the server refused the proof.
	ErrCodeVerificationFailed ErrorCode = "PAYMENT_VERIFICATION_FAILED"

	// ErrCodeNetworkError indicates a network communication error.
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
)

// PaymentError provides structured error information for payment operations.
type PaymentError struct {
	// Code is the error code for programmatic handling.
	Code ErrorCode

	// Message is the human-readable error message.
	Message string

	// Details contains additional error context, such as the server's
	// status code and body on verification failure.
	Details map[string]interface{}

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError with the given code and message.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds additional context to the error.
// Lazily initializes the Details map if nil.
func (e *PaymentError) WithDetails(key string, value interface{}) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
