package x402

// Deployment-fixed constants for payment requirements. Exactly one
// scheme/network combination is supported per deployment.
const (
	// SchemeExact is the only supported payment scheme: an exact-amount
	// transfer of the advertised atomic amount.
	SchemeExact = "exact"

	// DefaultNetwork is the deployment's chain identifier.
	DefaultNetwork = "base-sepolia"

	// DefaultMaxTimeoutSeconds is the advisory validity window advertised in
	// requirements. Not enforced server-side.
	DefaultMaxTimeoutSeconds = 60

	// DefaultMimeType is the content type of the protected resources.
	DefaultMimeType = "application/json"
)

// RequirementConfig is the input to NewPaymentRequirement. Amount, PayTo and
// Asset are caller-supplied; the remaining protocol fields are filled from
// deployment constants.
type RequirementConfig struct {
	// Resource is the absolute URL of the protected resource.
	Resource string

	// Amount is the required payment in atomic units, as a decimal integer
	// string. It is carried through unchanged; format validation belongs to
	// the validator, since only trusted server code calls the builder.
	Amount string

	// PayTo is the payment recipient address.
	PayTo string

	// Asset is the token contract address.
	Asset string

	// Description is an optional human-readable description.
	Description string

	// Network overrides DefaultNetwork when set.
	Network string

	// Extra is optional token metadata.
	Extra *TokenInfo
}

// NewPaymentRequirement builds the payment requirement advertised in a 402
// challenge. It is a pure function of its config plus deployment constants
// and has no failure mode.
func NewPaymentRequirement(cfg RequirementConfig) PaymentRequirement {
	network := cfg.Network
	if network == "" {
		network = DefaultNetwork
	}

	return PaymentRequirement{
		Scheme:            SchemeExact,
		Network:           network,
		MaxAmountRequired: cfg.Amount,
		Resource:          cfg.Resource,
		Description:       cfg.Description,
		MimeType:          DefaultMimeType,
		PayTo:             cfg.PayTo,
		MaxTimeoutSeconds: DefaultMaxTimeoutSeconds,
		Asset:             cfg.Asset,
		Extra:             cfg.Extra,
	}
}

// USDCInfo returns the extra metadata advertised for USDC requirements.
func USDCInfo() *TokenInfo {
	return &TokenInfo{Name: "USD Coin", Symbol: "USDC", Decimals: 6}
}
