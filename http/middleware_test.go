package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/encoding"
	"github.com/neverlabs/x402-credits-go/validation"
)

const (
	testPayTo = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
	testPayer = "0x1111111111111111111111111111111111111111"
)

func testConfig() *Config {
	return &Config{
		Amount: "500000",
		PayTo:  testPayTo,
		Logger: slog.New(slog.NewTextHandler(&strings.Builder{}, nil)),
	}
}

// okHandler records the PaymentInfo it sees and answers 200.
func okHandler(seen **PaymentInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = PaymentFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func proofHeader(t *testing.T, proof x402.PaymentProof) string {
	t.Helper()
	encoded, err := encoding.EncodeProof(proof)
	if err != nil {
		t.Fatalf("failed to encode proof: %v", err)
	}
	return encoded
}

func testProof() x402.PaymentProof {
	return x402.PaymentProof{
		From:    testPayer,
		To:      testPayTo,
		Asset:   x402.BaseSepolia.USDCAddress,
		Amount:  "500000",
		Tx:      "0xabc123",
		Network: "base-sepolia",
	}
}

func TestPaymentGateChallenge(t *testing.T) {
	var seen *PaymentInfo
	gate := NewPaymentGate(testConfig())
	handler := gate(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/premium-content", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
	if seen != nil {
		t.Error("handler must not run without payment")
	}

	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("undecodable challenge body: %v", err)
	}
	if challenge.X402Version != 1 {
		t.Errorf("expected x402Version 1, got %d", challenge.X402Version)
	}
	if challenge.Error != "" {
		t.Errorf("plain challenge must carry no error, got %q", challenge.Error)
	}
	if len(challenge.Accepts) != 1 {
		t.Fatalf("expected exactly one accepted requirement, got %d", len(challenge.Accepts))
	}

	requirement := challenge.Accepts[0]
	if requirement.Scheme != "exact" {
		t.Errorf("expected scheme exact, got %q", requirement.Scheme)
	}
	if requirement.Network != "base-sepolia" {
		t.Errorf("expected base-sepolia, got %q", requirement.Network)
	}
	if requirement.MaxAmountRequired != "500000" {
		t.Errorf("expected amount 500000, got %q", requirement.MaxAmountRequired)
	}
	if requirement.PayTo != testPayTo {
		t.Errorf("expected payTo %s, got %q", testPayTo, requirement.PayTo)
	}
	if requirement.Asset != x402.BaseSepolia.USDCAddress {
		t.Errorf("expected default USDC asset, got %q", requirement.Asset)
	}
	if requirement.Resource != "http://api.example.com/api/premium-content" {
		t.Errorf("expected absolute resource URL, got %q", requirement.Resource)
	}
	if requirement.Extra == nil || requirement.Extra.Symbol != "USDC" {
		t.Errorf("expected USDC metadata, got %+v", requirement.Extra)
	}
}

func TestPaymentGateMalformedHeader(t *testing.T) {
	var seen *PaymentInfo
	gate := NewPaymentGate(testConfig())
	handler := gate(okHandler(&seen))

	for _, header := range []string{"!!!not-base64!!!", "bm90IGpzb24="} {
		req := httptest.NewRequest(http.MethodGet, "/api/premium-content", nil)
		req.Header.Set("X-PAYMENT", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for header %q, got %d", header, rec.Code)
		}
		var body struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("undecodable error body: %v", err)
		}
		if body.Success || body.Error != "Failed to process payment" {
			t.Errorf("unexpected error body: %+v", body)
		}
	}
	if seen != nil {
		t.Error("handler must not run on malformed proof")
	}
}

func TestPaymentGateAccepted(t *testing.T) {
	var seen *PaymentInfo
	gate := NewPaymentGate(testConfig())
	handler := gate(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/premium-content", nil)
	req.Header.Set("X-PAYMENT", proofHeader(t, testProof()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if seen == nil {
		t.Fatal("expected PaymentInfo in context")
	}
	if seen.Payer != testPayer || seen.Amount != "500000" || seen.Tx != "0xabc123" {
		t.Errorf("unexpected PaymentInfo: %+v", seen)
	}
	if seen.Bypassed {
		t.Error("paid request must not be marked bypassed")
	}

	ackHeader := rec.Header().Get("X-PAYMENT-RESPONSE")
	if ackHeader == "" {
		t.Fatal("expected acknowledgment header on success")
	}
	ack, err := encoding.DecodeAcknowledgment(ackHeader)
	if err != nil {
		t.Fatalf("undecodable acknowledgment: %v", err)
	}
	if !ack.Success {
		t.Error("acknowledgment must report success")
	}
	if ack.Payment.Tx != "0xabc123" || ack.Payment.Payer != testPayer {
		t.Errorf("unexpected acknowledgment payment: %+v", ack.Payment)
	}
	if ack.Payment.Facilitator != "http://api.example.com" {
		t.Errorf("expected server's own base URL as facilitator, got %q", ack.Payment.Facilitator)
	}
}

func TestPaymentGateRejectedProof(t *testing.T) {
	var seen *PaymentInfo
	gate := NewPaymentGate(testConfig())
	handler := gate(okHandler(&seen))

	proof := testProof()
	proof.To = "0x3333333333333333333333333333333333333333"

	req := httptest.NewRequest(http.MethodGet, "/api/hook/wallet", nil)
	req.Header.Set("X-PAYMENT", proofHeader(t, proof))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for rejected proof, got %d", rec.Code)
	}
	if seen != nil {
		t.Error("handler must not run on rejected proof")
	}

	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("undecodable challenge: %v", err)
	}
	if !strings.Contains(challenge.Error, "wrong recipient") {
		t.Errorf("expected rejection reason in error field, got %q", challenge.Error)
	}
	if len(challenge.Accepts) != 1 {
		t.Errorf("rejection must re-advertise the requirement, got %d accepts", len(challenge.Accepts))
	}
}

func TestPaymentGatePresenceOnly(t *testing.T) {
	var seen *PaymentInfo
	config := testConfig()
	config.Policy = validation.PolicyPresenceOnly
	gate := NewPaymentGate(config)
	handler := gate(okHandler(&seen))

	// Fields that strict validation would reject.
	proof := testProof()
	proof.To = "0x3333333333333333333333333333333333333333"
	proof.Asset = "0x4444444444444444444444444444444444444444"

	req := httptest.NewRequest(http.MethodGet, "/api/premium-content", nil)
	req.Header.Set("X-PAYMENT", proofHeader(t, proof))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected presence-only acceptance, got %d", rec.Code)
	}
	if seen == nil {
		t.Error("expected PaymentInfo in context")
	}
}

func TestPaymentGateBypass(t *testing.T) {
	t.Run("header bypass in dev mode", func(t *testing.T) {
		var seen *PaymentInfo
		config := testConfig()
		config.DevMode = true
		handler := NewPaymentGate(config)(okHandler(&seen))

		req := httptest.NewRequest(http.MethodGet, "/api/premium-content", nil)
		req.Header.Set("X-DEV-BYPASS-PAYMENT", "true")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seen == nil || !seen.Bypassed {
			t.Fatalf("expected bypassed PaymentInfo, got %+v", seen)
		}
		if seen.Payer != x402.ZeroAddress {
			t.Errorf("expected zero address payer, got %s", seen.Payer)
		}
		// The placeholder id is a padded timestamp, distinguishable from a
		// real hash by its zero prefix.
		if !strings.HasPrefix(seen.Tx, "0x00000000") {
			t.Errorf("expected placeholder tx id, got %s", seen.Tx)
		}
		if rec.Header().Get("X-PAYMENT-RESPONSE") == "" {
			t.Error("bypassed requests still get an acknowledgment")
		}
	})

	t.Run("query bypass with address and amount", func(t *testing.T) {
		var seen *PaymentInfo
		config := testConfig()
		config.DevMode = true
		config.AmountFromQuery = true
		handler := NewPaymentGate(config)(okHandler(&seen))

		req := httptest.NewRequest(http.MethodGet,
			"/api/hook/wallet?bypass=true&address="+testPayer+"&amount=1000000", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seen.Payer != testPayer {
			t.Errorf("expected payer from address parameter, got %s", seen.Payer)
		}
		if seen.Amount != "1000000" {
			t.Errorf("expected amount from query override, got %s", seen.Amount)
		}
	})

	t.Run("bypass signals ignored without dev mode", func(t *testing.T) {
		var seen *PaymentInfo
		handler := NewPaymentGate(testConfig())(okHandler(&seen))

		req := httptest.NewRequest(http.MethodGet, "/api/premium-content?bypass=true", nil)
		req.Header.Set("X-DEV-BYPASS-PAYMENT", "true")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusPaymentRequired {
			t.Errorf("expected 402 when dev mode is off, got %d", rec.Code)
		}
		if seen != nil {
			t.Error("handler must not run on ignored bypass")
		}
	})
}

func TestPaymentGateAmountFromQuery(t *testing.T) {
	config := testConfig()
	config.AmountFromQuery = true
	handler := NewPaymentGate(config)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/hook/wallet?amount=2500000", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var challenge x402.PaymentRequirementsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &challenge); err != nil {
		t.Fatalf("undecodable challenge: %v", err)
	}
	if challenge.Accepts[0].MaxAmountRequired != "2500000" {
		t.Errorf("expected query amount in challenge, got %q", challenge.Accepts[0].MaxAmountRequired)
	}
}

func TestAckWithheldOnHandlerError(t *testing.T) {
	gate := NewPaymentGate(testConfig())
	handler := gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "allocation failed", http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/hook/wallet", nil)
	req.Header.Set("X-PAYMENT", proofHeader(t, testProof()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected handler's 500 to pass through, got %d", rec.Code)
	}
	if rec.Header().Get("X-PAYMENT-RESPONSE") != "" {
		t.Error("acknowledgment must be withheld on error status")
	}
}

func TestBaseURLOverride(t *testing.T) {
	config := testConfig()
	config.BaseURL = "https://public.example.com"
	handler := NewPaymentGate(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://internal:8080/api/hook/wallet", nil)
	req.Header.Set("X-PAYMENT", proofHeader(t, testProof()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	ack, err := encoding.DecodeAcknowledgment(rec.Header().Get("X-PAYMENT-RESPONSE"))
	if err != nil {
		t.Fatalf("undecodable acknowledgment: %v", err)
	}
	if ack.Payment.Facilitator != "https://public.example.com" {
		t.Errorf("expected configured base URL as facilitator, got %q", ack.Payment.Facilitator)
	}
}
