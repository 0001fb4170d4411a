package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/http/internal/helpers"
	"github.com/neverlabs/x402-credits-go/ledger"
)

// CreditsConfig holds the configuration for the credit-purchase handler.
type CreditsConfig struct {
	// Ledger receives the allocation for each settled payment (required).
	Ledger ledger.Ledger

	// Rate is the number of credits per whole asset unit.
	// Defaults to x402.DefaultCreditsPerUnit.
	Rate int64

	// Decimals is the asset's decimal precision. Defaults to 6 (USDC).
	Decimals int

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// creditsGrant is the success body of the credits endpoint.
type creditsGrant struct {
	Success bool        `json:"success"`
	Data    creditsData `json:"data"`
}

type creditsData struct {
	WalletAddress string `json:"walletAddress"`
	Credits       int64  `json:"credits"`
	Timestamp     string `json:"timestamp"`
}

// NewCreditsHandler returns the handler for the credit-purchase resource.
// It must sit behind NewPaymentGate: it reads the accepted payment from the
// request context, converts the settled amount to credits, and allocates
// them on the ledger. A failed allocation is reported as HTTP 500 — payment
// accepted, credit allocation failed — distinct from a validation failure,
// and the gate withholds the acknowledgment header in that case.
func NewCreditsHandler(config *CreditsConfig) http.Handler {
	rate := config.Rate
	if rate == 0 {
		rate = x402.DefaultCreditsPerUnit
	}
	decimals := config.Decimals
	if decimals == 0 {
		decimals = 6
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := config.Logger
		if logger == nil {
			logger = slog.Default()
		}

		info := PaymentFromContext(r.Context())
		if info == nil {
			// Reachable only when the handler is mounted without the gate.
			logger.Error("credits handler called without payment gate")
			helpers.SendError(w, http.StatusInternalServerError, "Payment gate not configured")
			return
		}

		credits, err := x402.CreditsForAmount(info.Amount, decimals, rate)
		if err != nil {
			logger.Warn("failed to calculate credits", "amount", info.Amount, "error", err)
			helpers.SendError(w, http.StatusBadRequest, "Failed to process payment")
			return
		}

		if err := config.Ledger.Allocate(r.Context(), info.Payer, credits); err != nil {
			logger.Error("credit allocation failed", "payer", info.Payer, "credits", credits, "error", err)
			helpers.SendError(w, http.StatusInternalServerError, "Failed to allocate credits")
			return
		}

		logger.Info("credits allocated", "payer", info.Payer, "credits", credits, "tx", info.Tx)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(creditsGrant{
			Success: true,
			Data: creditsData{
				WalletAddress: info.Payer,
				Credits:       credits,
				Timestamp:     time.Now().UTC().Format(time.RFC3339),
			},
		})
	})
}
