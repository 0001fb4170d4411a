// Package gin provides Gin-compatible middleware for x402 payment gating.
// This package is a thin adapter that translates gin.Context to stdlib http
// patterns and delegates the protocol behavior to the http package helpers.
package gin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neverlabs/x402-credits-go"
	httpx402 "github.com/neverlabs/x402-credits-go/http"
	"github.com/neverlabs/x402-credits-go/http/internal/helpers"
	"github.com/neverlabs/x402-credits-go/validation"
)

// PaymentKey is the Gin context key under which the accepted payment is
// stored.
const PaymentKey = "x402_payment"

// NewPaymentGate creates a Gin middleware enforcing the x402 payment
// challenge. It mirrors the stdlib gate:
//   - Requests without an X-PAYMENT header are answered 402 with the
//     requirement.
//   - Undecodable headers are answered 400.
//   - Rejected proofs are answered 402 with the rejection reason.
//   - Accepted requests proceed with the payment stored both via
//     c.Set(PaymentKey, info) and in the request context, so handlers
//     wrapped with gin.WrapH (such as the credits handler) see it too.
//
// Example usage:
//
//	r := gin.Default()
//	gate := NewPaymentGate(&httpx402.Config{
//	    PayTo:  "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
//	    Amount: "500000",
//	})
//	r.GET("/protected", gate, func(c *gin.Context) {
//	    info := c.MustGet(PaymentKey).(*httpx402.PaymentInfo)
//	    c.JSON(200, gin.H{"payer": info.Payer})
//	})
func NewPaymentGate(config *httpx402.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.Logger
		if logger == nil {
			logger = slog.Default()
		}

		requirement := requirementForRequest(config, c)

		info, ok := acceptPayment(config, logger, c, requirement)
		if !ok {
			return
		}

		c.Set(PaymentKey, info)
		ctx := context.WithValue(c.Request.Context(), httpx402.PaymentContextKey, info)
		c.Request = c.Request.WithContext(ctx)

		facilitator := config.BaseURL
		if facilitator == "" {
			facilitator = schemeOf(c.Request) + "://" + c.Request.Host
		}
		c.Writer = &ackWriter{
			ResponseWriter: c.Writer,
			ackFunc: func(h http.Header) {
				ack, err := helpers.AcknowledgmentHeader(info.Tx, facilitator, info.Payer)
				if err != nil {
					logger.Warn("failed to encode acknowledgment header", "error", err)
					return
				}
				h.Set("X-PAYMENT-RESPONSE", ack)
			},
		}

		c.Next()
	}
}

// acceptPayment runs the unpaid side of the state machine with Gin response
// idioms. It either aborts with the protocol response and returns ok=false,
// or returns the accepted payment.
func acceptPayment(config *httpx402.Config, logger *slog.Logger, c *gin.Context, requirement x402.PaymentRequirement) (*httpx402.PaymentInfo, bool) {
	if config.DevMode && helpers.BypassRequested(c.Request) {
		payer := c.Query("address")
		if payer == "" {
			payer = x402.ZeroAddress
		}
		logger.Info("payment bypassed", "path", c.Request.URL.Path, "payer", payer)
		return &httpx402.PaymentInfo{
			Bypassed: true,
			Payer:    payer,
			Amount:   requirement.MaxAmountRequired,
			Tx:       x402.PlaceholderTxID(),
		}, true
	}

	proof, err := helpers.ParseProofHeader(c.Request)
	if err != nil {
		logger.Warn("invalid payment header", "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, helpers.ErrorResponse{
			Success: false,
			Error:   "Failed to process payment",
		})
		return nil, false
	}

	if proof == nil {
		logger.Info("no payment header provided", "path", c.Request.URL.Path)
		abortPaymentRequired(c, requirement, "")
		return nil, false
	}

	if err := validation.Validate(config.Policy, proof, requirement, config.Options); err != nil {
		logger.Warn("payment rejected", "path", c.Request.URL.Path, "policy", config.Policy.String(), "reason", err)
		abortPaymentRequired(c, requirement, err.Error())
		return nil, false
	}

	logger.Info("payment accepted", "path", c.Request.URL.Path, "payer", proof.From, "tx", proof.Tx)
	return &httpx402.PaymentInfo{
		Proof:  proof,
		Payer:  proof.From,
		Amount: proof.Amount,
		Tx:     proof.Tx,
	}, true
}

// abortPaymentRequired sends the 402 challenge using Gin's JSON methods and
// stops the handler chain.
func abortPaymentRequired(c *gin.Context, requirement x402.PaymentRequirement, msg string) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, x402.PaymentRequirementsResponse{
		X402Version: x402.Version,
		Error:       msg,
		Accepts:     []x402.PaymentRequirement{requirement},
	})
}

// requirementForRequest builds the stateless per-request requirement with the
// same defaults as the stdlib gate.
func requirementForRequest(config *httpx402.Config, c *gin.Context) x402.PaymentRequirement {
	amount := config.Amount
	if amount == "" {
		amount = "500000"
	}
	if config.AmountFromQuery {
		if q := c.Query("amount"); q != "" {
			amount = q
		}
	}

	asset := config.Asset
	if asset == "" {
		asset = x402.BaseSepolia.USDCAddress
	}

	extra := config.Extra
	if extra == nil {
		extra = x402.USDCInfo()
	}

	resource := config.BaseURL
	if resource == "" {
		resource = schemeOf(c.Request) + "://" + c.Request.Host
	}
	resource += c.Request.URL.Path

	return x402.NewPaymentRequirement(x402.RequirementConfig{
		Resource:    resource,
		Amount:      amount,
		PayTo:       config.PayTo,
		Asset:       asset,
		Description: config.Description,
		Network:     config.Network,
		Extra:       extra,
	})
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// ackWriter attaches the acknowledgment header at the moment the handler
// commits a success status. Error statuses pass through without an
// acknowledgment.
type ackWriter struct {
	gin.ResponseWriter
	ackFunc   func(http.Header)
	committed bool
}

func (w *ackWriter) WriteHeader(statusCode int) {
	w.commit(statusCode)
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ackWriter) Write(b []byte) (int, error) {
	w.commit(w.Status())
	return w.ResponseWriter.Write(b)
}

func (w *ackWriter) WriteString(s string) (int, error) {
	w.commit(w.Status())
	return w.ResponseWriter.WriteString(s)
}

func (w *ackWriter) commit(statusCode int) {
	if w.committed {
		return
	}
	w.committed = true
	if statusCode < 400 {
		w.ackFunc(w.Header())
	}
}
