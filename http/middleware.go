// Package http provides HTTP middleware and client transports for x402
// payment gating.
package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/neverlabs/x402-credits-go"
	"github.com/neverlabs/x402-credits-go/http/internal/helpers"
	"github.com/neverlabs/x402-credits-go/validation"
)

// Config holds the configuration for the payment gate middleware.
type Config struct {
	// Amount is the advertised payment amount in atomic units.
	// Defaults to "500000" (0.5 USDC).
	Amount string

	// PayTo is the payment recipient address (required).
	PayTo string

	// Asset is the token contract address. Defaults to USDC on the
	// configured network.
	Asset string

	// Network is the chain identifier. Defaults to x402.DefaultNetwork.
	Network string

	// Description is the human-readable description of the resource.
	Description string

	// Extra is the token metadata advertised in requirements.
	// Defaults to the USDC metadata.
	Extra *x402.TokenInfo

	// Policy selects strict or presence-only proof validation.
	// The zero value is strict.
	Policy validation.Policy

	// Options enables hardened checks beyond the reference behavior.
	Options validation.Options

	// DevMode enables the payment bypass signals. With DevMode unset, a
	// request carrying a bypass signal is still challenged with 402.
	DevMode bool

	// AmountFromQuery lets the request's amount query parameter override the
	// advertised amount, as the credits endpoint does.
	AmountFromQuery bool

	// BaseURL is the server's externally visible base URL, attested as the
	// facilitator in acknowledgments. Defaults to the request's scheme://host.
	BaseURL string

	// Logger receives structured request logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PaymentContextKey is the context key for storing accepted payment
// information.
const PaymentContextKey = contextKey("x402_payment")

// PaymentInfo is the record of an accepted payment, stored in the request
// context for handlers behind the gate.
type PaymentInfo struct {
	// Proof is the presented payment proof. Nil when the payment was
	// bypassed.
	Proof *x402.PaymentProof

	// Bypassed reports whether the development bypass was used.
	Bypassed bool

	// Payer is the paying address, or the address query parameter (falling
	// back to the zero address) when bypassed.
	Payer string

	// Amount is the settled amount in atomic units.
	Amount string

	// Tx is the on-chain transaction id, or a placeholder id when bypassed.
	Tx string
}

// PaymentFromContext returns the accepted payment stored by the gate, or nil.
func PaymentFromContext(ctx context.Context) *PaymentInfo {
	info, _ := ctx.Value(PaymentContextKey).(*PaymentInfo)
	return info
}

// NewPaymentGate creates the x402 challenge/response middleware. Requests
// without an acceptable proof are answered with 402 and the requirement;
// requests with an undecodable proof get 400; accepted requests reach the
// next handler with a PaymentInfo in the context, and the acknowledgment
// header is attached when the handler commits a success status.
func NewPaymentGate(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := config.Logger
			if logger == nil {
				logger = slog.Default()
			}

			requirement := requirementForRequest(config, r)

			info, ok := acceptPayment(config, logger, w, r, requirement)
			if !ok {
				return
			}

			ctx := context.WithValue(r.Context(), PaymentContextKey, info)
			r = r.WithContext(ctx)

			interceptor := &ackInterceptor{
				w: w,
				ackFunc: func(h http.Header) {
					ack, err := helpers.AcknowledgmentHeader(info.Tx, baseURL(config, r), info.Payer)
					if err != nil {
						logger.Warn("failed to encode acknowledgment header", "error", err)
						return
					}
					h.Set("X-PAYMENT-RESPONSE", ack)
				},
			}
			next.ServeHTTP(interceptor, r)
		})
	}
}

// acceptPayment runs the UNPAID side of the state machine. It either writes
// the 402/400 response and returns ok=false, or returns the accepted
// payment. Shared by the stdlib and Gin gates.
func acceptPayment(config *Config, logger *slog.Logger, w http.ResponseWriter, r *http.Request, requirement x402.PaymentRequirement) (*PaymentInfo, bool) {
	// The bypass path must be unreachable unless the deployment flag is
	// set, regardless of any client-supplied signal.
	if config.DevMode && helpers.BypassRequested(r) {
		payer := r.URL.Query().Get("address")
		if payer == "" {
			payer = x402.ZeroAddress
		}
		logger.Info("payment bypassed", "path", r.URL.Path, "payer", payer)
		return &PaymentInfo{
			Bypassed: true,
			Payer:    payer,
			Amount:   requirement.MaxAmountRequired,
			Tx:       x402.PlaceholderTxID(),
		}, true
	}

	proof, err := helpers.ParseProofHeader(r)
	if err != nil {
		logger.Warn("invalid payment header", "path", r.URL.Path, "error", err)
		helpers.SendError(w, http.StatusBadRequest, "Failed to process payment")
		return nil, false
	}

	if proof == nil {
		logger.Info("no payment header provided", "path", r.URL.Path)
		helpers.SendPaymentRequired(w, []x402.PaymentRequirement{requirement}, "")
		return nil, false
	}

	if err := validation.Validate(config.Policy, proof, requirement, config.Options); err != nil {
		logger.Warn("payment rejected", "path", r.URL.Path, "policy", config.Policy.String(), "reason", err)
		helpers.SendPaymentRequired(w, []x402.PaymentRequirement{requirement}, err.Error())
		return nil, false
	}

	logger.Info("payment accepted", "path", r.URL.Path, "payer", proof.From, "tx", proof.Tx)
	return &PaymentInfo{
		Proof:  proof,
		Payer:  proof.From,
		Amount: proof.Amount,
		Tx:     proof.Tx,
	}, true
}

// requirementForRequest derives the requirement advertised for this request.
// The challenge is stateless: it is rebuilt fresh on every request rather
// than stored and looked up.
func requirementForRequest(config *Config, r *http.Request) x402.PaymentRequirement {
	amount := config.Amount
	if amount == "" {
		amount = "500000"
	}
	if config.AmountFromQuery {
		if q := r.URL.Query().Get("amount"); q != "" {
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

	return x402.NewPaymentRequirement(x402.RequirementConfig{
		Resource:    resourceURL(config, r),
		Amount:      amount,
		PayTo:       config.PayTo,
		Asset:       asset,
		Description: config.Description,
		Network:     config.Network,
		Extra:       extra,
	})
}

// baseURL returns the facilitator URL attested in acknowledgments.
func baseURL(config *Config, r *http.Request) string {
	if config.BaseURL != "" {
		return config.BaseURL
	}
	return schemeOf(r) + "://" + r.Host
}

// resourceURL builds the absolute URL of the protected resource.
func resourceURL(config *Config, r *http.Request) string {
	if config.BaseURL != "" {
		return config.BaseURL + r.URL.Path
	}
	return schemeOf(r) + "://" + r.Host + r.URL.Path
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// ackInterceptor wraps the ResponseWriter to attach the acknowledgment
// header at the moment the handler commits a success status. Error statuses
// pass through without an acknowledgment, so a failed allocation is not
// attested as settled.
type ackInterceptor struct {
	w http.ResponseWriter
	// ackFunc sets the X-PAYMENT-RESPONSE header.
	ackFunc   func(http.Header)
	committed bool
}

func (i *ackInterceptor) Header() http.Header {
	return i.w.Header()
}

func (i *ackInterceptor) Write(b []byte) (int, error) {
	// A Write without WriteHeader implies 200 OK, so commit now.
	if !i.committed {
		i.WriteHeader(http.StatusOK)
	}
	return i.w.Write(b)
}

func (i *ackInterceptor) WriteHeader(statusCode int) {
	if i.committed {
		return
	}
	i.committed = true

	if statusCode < 400 {
		i.ackFunc(i.w.Header())
	}
	i.w.WriteHeader(statusCode)
}

// Flush implements http.Flusher to support streaming responses.
func (i *ackInterceptor) Flush() {
	if flusher, ok := i.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker to support connection hijacking.
func (i *ackInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := i.w.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

// Push implements http.Pusher to support HTTP/2 server push.
func (i *ackInterceptor) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := i.w.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}
