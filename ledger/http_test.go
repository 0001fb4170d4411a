package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/retry"
)

var fastRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2.0,
}

func TestClientAllocate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody allocateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(allocateResponse{Success: true})
	}))
	defer server.Close()

	client := &Client{
		BaseURL:       server.URL,
		Authorization: "Bearer sekrit",
		Retry:         fastRetry,
	}

	if err := client.Allocate(context.Background(), "0xabc", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/allocate" {
		t.Errorf("expected POST /allocate, got %s", gotPath)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("expected authorization header, got %q", gotAuth)
	}
	if gotBody.WalletAddress != "0xabc" || gotBody.Credits != 5 {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(allocateResponse{Success: true})
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Retry: fastRetry}

	if err := client.Allocate(context.Background(), "0xabc", 5); err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClientDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Retry: fastRetry}

	err := client.Allocate(context.Background(), "0xabc", 5)
	if !errors.Is(err, x402.ErrAllocationFailed) {
		t.Fatalf("expected ErrAllocationFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("a 4xx rejection must not be retried, got %d calls", calls.Load())
	}
}

func TestClientExhaustedRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Retry: fastRetry}

	err := client.Allocate(context.Background(), "0xabc", 5)
	if !errors.Is(err, x402.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected all 3 attempts used, got %d", calls.Load())
	}
}

func TestClientUnreachableLedger(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := &Client{BaseURL: server.URL, Retry: fastRetry}

	err := client.Allocate(context.Background(), "0xabc", 5)
	if !errors.Is(err, x402.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestClientServiceLevelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(allocateResponse{Success: false, Error: "account frozen"})
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Retry: fastRetry}

	err := client.Allocate(context.Background(), "0xabc", 5)
	if !errors.Is(err, x402.ErrAllocationFailed) {
		t.Fatalf("expected ErrAllocationFailed, got %v", err)
	}
}
