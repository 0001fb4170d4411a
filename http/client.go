package http

import (
	"net/http"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/encoding"
	"github.com/neverlabs/x402-credits-go/wallet"
)

// Client is an http.Client that transparently settles x402 payment
// challenges through its Transport.
type Client struct {
	*http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client, *Transport)

// WithHTTPClient sets the underlying HTTP client. Its Transport becomes the
// base RoundTripper of the payment transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client, t *Transport) {
		if hc == nil {
			return
		}
		c.Client = hc
		t.Base = hc.Transport
	}
}

// WithWallet sets the wallet used to settle payments.
func WithWallet(w wallet.Wallet) ClientOption {
	return func(c *Client, t *Transport) {
		t.Wallet = w
		if w != nil && t.Network == "" {
			t.Network = w.Network()
		}
	}
}

// WithNetwork sets the supported chain identifier.
func WithNetwork(network string) ClientOption {
	return func(c *Client, t *Transport) {
		t.Network = network
	}
}

// WithBypass makes the client answer challenges with the development bypass
// header instead of settling on-chain. Only honored by servers running in
// dev mode.
func WithBypass(enabled bool) ClientOption {
	return func(c *Client, t *Transport) {
		t.Bypass = enabled
	}
}

// WithTimeouts sets the settlement timeouts and the overall request timeout.
func WithTimeouts(timeouts x402.TimeoutConfig) ClientOption {
	return func(c *Client, t *Transport) {
		t.Timeouts = timeouts
		if timeouts.RequestTimeout > 0 {
			c.Timeout = timeouts.RequestTimeout
		}
	}
}

// WithPaymentCallbacks registers observers for the settlement lifecycle.
// Any callback may be nil.
func WithPaymentCallbacks(onAttempt, onSuccess, onFailure x402.PaymentCallback) ClientOption {
	return func(c *Client, t *Transport) {
		t.OnPaymentAttempt = onAttempt
		t.OnPaymentSuccess = onSuccess
		t.OnPaymentFailure = onFailure
	}
}

// NewClient creates a payment-settling HTTP client. With no options it can
// fetch free resources and fail cleanly on 402 challenges; add WithWallet to
// settle them.
//
// No overall client timeout is set by default: a single round trip spans
// submission and confirmation of the on-chain transfer, and the settlement
// steps carry their own timeouts. WithTimeouts sets one explicitly.
func NewClient(opts ...ClientOption) *Client {
	transport := &Transport{}
	client := &Client{
		Client: &http.Client{},
	}

	for _, opt := range opts {
		opt(client, transport)
	}

	client.Client.Transport = transport
	return client
}

// GetAcknowledgment extracts and decodes the X-PAYMENT-RESPONSE header from
// a response. It returns nil when the header is absent or undecodable.
func GetAcknowledgment(resp *http.Response) *x402.Acknowledgment {
	headerValue := resp.Header.Get("X-PAYMENT-RESPONSE")
	if headerValue == "" {
		return nil
	}

	ack, err := encoding.DecodeAcknowledgment(headerValue)
	if err != nil {
		return nil
	}
	return &ack
}
