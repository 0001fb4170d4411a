package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/retry"
)

// Client is a Ledger backed by a remote credit service. Allocations are
// POSTed as JSON and retried with backoff on transport errors and 5xx
// responses; a 4xx response is treated as a permanent rejection.
type Client struct {
	// BaseURL is the ledger service root (no trailing slash).
	BaseURL string

	// HTTPClient is the client used for requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Authorization is sent as the Authorization header when non-empty.
	Authorization string

	// Retry overrides the retry policy. The zero value uses
	// retry.DefaultConfig.
	Retry retry.Config
}

// allocateRequest is the wire body of an allocation call.
type allocateRequest struct {
	WalletAddress string `json:"walletAddress"`
	Credits       int64  `json:"credits"`
}

// allocateResponse is the wire body of an allocation result.
type allocateResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// transientError marks an allocation failure worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Allocate implements Ledger.
func (c *Client) Allocate(ctx context.Context, address string, credits int64) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	retryConfig := c.Retry
	if retryConfig.MaxAttempts == 0 {
		retryConfig = retry.DefaultConfig
	}

	body, err := json.Marshal(allocateRequest{
		WalletAddress: address,
		Credits:       credits,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", x402.ErrAllocationFailed, err)
	}

	_, err = retry.WithRetry(ctx, retryConfig,
		func(err error) bool {
			_, ok := err.(*transientError)
			return ok
		},
		func() (struct{}, error) {
			return struct{}{}, c.allocateOnce(ctx, httpClient, body)
		},
	)
	return err
}

// allocateOnce performs a single allocation call.
func (c *Client) allocateOnce(ctx context.Context, httpClient *http.Client, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/allocate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", x402.ErrAllocationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &transientError{fmt.Errorf("%w: %v", x402.ErrLedgerUnavailable, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &transientError{fmt.Errorf("%w: ledger returned status %d", x402.ErrLedgerUnavailable, resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ledger returned status %d", x402.ErrAllocationFailed, resp.StatusCode)
	}

	var result allocateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&result); err != nil {
		return fmt.Errorf("%w: undecodable ledger response: %v", x402.ErrAllocationFailed, err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", x402.ErrAllocationFailed, result.Error)
	}

	return nil
}
