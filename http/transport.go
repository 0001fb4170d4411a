package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/encoding"
	"github.com/neverlabs/x402-credits-go/http/internal/helpers"
	"github.com/neverlabs/x402-credits-go/validation"
	"github.com/neverlabs/x402-credits-go/wallet"
)

// Transport is a RoundTripper that settles x402 payment challenges. On a
// 402 response it submits the required on-chain transfer through the
// configured wallet and retries the request with the payment proof attached.
//
// The pipeline is strictly sequential and single-attempt: there is no
// automatic retry, no enforcement of maxTimeoutSeconds, and no idempotency
// key. A caller that re-issues a request after a network blip will pay
// twice.
type Transport struct {
	// Base is the underlying RoundTripper (typically http.DefaultTransport).
	Base http.RoundTripper

	// Wallet provides the connected address and signing capability.
	// Required unless Bypass is set.
	Wallet wallet.Wallet

	// Network is the single supported chain identifier.
	// Defaults to x402.DefaultNetwork.
	Network string

	// Bypass makes the transport answer a 402 by re-issuing the request
	// with only the development bypass header, skipping settlement.
	Bypass bool

	// Timeouts bound the submission and confirmation steps.
	// Zero values fall back to x402.DefaultTimeouts.
	Timeouts x402.TimeoutConfig

	// OnPaymentAttempt is called when a payment attempt is made.
	OnPaymentAttempt x402.PaymentCallback

	// OnPaymentSuccess is called when a payment succeeds.
	OnPaymentSuccess x402.PaymentCallback

	// OnPaymentFailure is called when a payment fails.
	OnPaymentFailure x402.PaymentCallback
}

// RoundTrip implements http.RoundTripper. It makes the initial request and,
// if a 402 Payment Required response is received, drives the settlement
// pipeline and retries the request with the proof.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Clone the request to avoid modifying the original
	reqCopy := req.Clone(req.Context())

	resp, err := base.RoundTrip(reqCopy)
	if err != nil {
		return nil, err
	}

	// Anything other than 402 is the caller's business: a 2xx means the
	// resource was free or already authorized, and settlement must not run.
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	requirement, err := firstRequirement(resp)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if t.Bypass {
		reqBypass := req.Clone(req.Context())
		reqBypass.Header.Set(helpers.BypassHeader, "true")
		return base.RoundTrip(reqBypass)
	}

	if t.Wallet == nil {
		return nil, x402.NewPaymentError(x402.ErrCodeTransferSubmission,
			"no wallet configured", x402.ErrTransferSubmission)
	}

	network := t.Network
	if network == "" {
		network = x402.DefaultNetwork
	}
	if requirement.Network != network || requirement.Scheme != x402.SchemeExact {
		return nil, x402.NewPaymentError(x402.ErrCodeUnsupportedRequirement,
			"requirement does not match the supported scheme/network", x402.ErrUnsupportedRequirement).
			WithDetails("network", requirement.Network).
			WithDetails("scheme", requirement.Scheme)
	}
	if err := validation.ValidateRequirement(*requirement); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements,
			"server issued an invalid requirement", err)
	}

	startTime := time.Now()
	t.emit(x402.PaymentEvent{
		Type:      x402.PaymentEventAttempt,
		Timestamp: startTime,
		URL:       req.URL.String(),
		Network:   requirement.Network,
		Scheme:    requirement.Scheme,
		Amount:    requirement.MaxAmountRequired,
		Asset:     requirement.Asset,
		Recipient: requirement.PayTo,
	}, t.OnPaymentAttempt)

	txID, err := t.settle(req, requirement)
	if err != nil {
		t.emitFailure(req, err, time.Since(startTime))
		return nil, err
	}

	proof := x402.PaymentProof{
		From:    t.Wallet.Address(),
		To:      requirement.PayTo,
		Asset:   requirement.Asset,
		Amount:  requirement.MaxAmountRequired,
		Tx:      txID,
		Network: requirement.Network,
	}
	proofHeader, err := encoding.EncodeProof(proof)
	if err != nil {
		err = x402.NewPaymentError(x402.ErrCodeVerificationFailed, "failed to build payment header", err)
		t.emitFailure(req, err, time.Since(startTime))
		return nil, err
	}

	reqRetry := req.Clone(req.Context())
	reqRetry.Header.Set("X-PAYMENT", proofHeader)

	respRetry, err := base.RoundTrip(reqRetry)
	duration := time.Since(startTime)
	if err != nil {
		t.emitFailure(req, err, duration)
		return nil, err
	}

	// The transfer is already settled at this point; a rejection here is a
	// hard failure that carries the server's verdict for diagnostics.
	if respRetry.StatusCode < 200 || respRetry.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(respRetry.Body, 4096))
		respRetry.Body.Close()
		err = x402.NewPaymentError(x402.ErrCodeVerificationFailed,
			fmt.Sprintf("payment verification failed with status %d", respRetry.StatusCode),
			x402.ErrVerificationFailed).
			WithDetails("status", respRetry.StatusCode).
			WithDetails("body", string(body))
		t.emitFailure(req, err, duration)
		return nil, err
	}

	t.emit(x402.PaymentEvent{
		Type:        x402.PaymentEventSuccess,
		Timestamp:   time.Now(),
		URL:         req.URL.String(),
		Network:     requirement.Network,
		Scheme:      requirement.Scheme,
		Amount:      requirement.MaxAmountRequired,
		Asset:       requirement.Asset,
		Recipient:   requirement.PayTo,
		Payer:       proof.From,
		Transaction: txID,
		Duration:    duration,
	}, t.OnPaymentSuccess)

	return respRetry, nil
}

// settle submits the transfer and waits for finality, returning the
// confirmed transaction id.
func (t *Transport) settle(req *http.Request, requirement *x402.PaymentRequirement) (string, error) {
	amount, ok := new(big.Int).SetString(requirement.MaxAmountRequired, 10)
	if !ok {
		return "", x402.NewPaymentError(x402.ErrCodeInvalidRequirements,
			"invalid amount in requirement", x402.ErrInvalidAmount)
	}

	timeouts := t.Timeouts
	if timeouts.SubmitTimeout == 0 {
		timeouts.SubmitTimeout = x402.DefaultTimeouts.SubmitTimeout
	}
	if timeouts.ConfirmTimeout == 0 {
		timeouts.ConfirmTimeout = x402.DefaultTimeouts.ConfirmTimeout
	}

	// Step contexts derive from the request's context so a cancelled
	// caller aborts the pipeline.
	submitCtx, cancelSubmit := context.WithTimeout(req.Context(), timeouts.SubmitTimeout)
	defer cancelSubmit()
	txID, err := t.Wallet.TransferToken(submitCtx, requirement.Asset, requirement.PayTo, amount)
	if err != nil {
		return "", x402.NewPaymentError(x402.ErrCodeTransferSubmission,
			"failed to submit transfer", err).
			WithDetails("asset", requirement.Asset).
			WithDetails("recipient", requirement.PayTo)
	}

	confirmCtx, cancelConfirm := context.WithTimeout(req.Context(), timeouts.ConfirmTimeout)
	defer cancelConfirm()
	if err := t.Wallet.AwaitConfirmation(confirmCtx, txID); err != nil {
		return "", x402.NewPaymentError(x402.ErrCodeTransferNotConfirmed,
			"transfer did not confirm", err).
			WithDetails("tx", txID)
	}

	return txID, nil
}

func (t *Transport) emit(event x402.PaymentEvent, cb x402.PaymentCallback) {
	if cb != nil {
		cb(event)
	}
}

func (t *Transport) emitFailure(req *http.Request, err error, duration time.Duration) {
	t.emit(x402.PaymentEvent{
		Type:      x402.PaymentEventFailure,
		Timestamp: time.Now(),
		URL:       req.URL.String(),
		Error:     err,
		Duration:  duration,
	}, t.OnPaymentFailure)
}

// firstRequirement parses the 402 body and applies the single-option policy:
// the first accepted requirement wins, with no further selection logic.
func firstRequirement(resp *http.Response) (*x402.PaymentRequirement, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements,
			"failed to read payment requirements", err)
	}

	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidRequirements,
			"failed to parse payment requirements", err)
	}

	if len(challenge.Accepts) == 0 {
		return nil, x402.NewPaymentError(x402.ErrCodeNoPaymentOptions,
			"no payment options in 402 response", x402.ErrNoPaymentOptions)
	}

	return &challenge.Accepts[0], nil
}
