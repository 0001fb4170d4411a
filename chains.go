package x402

import (
	"fmt"
	"math/big"
)

// ZeroAddress is the EVM zero address, used as the payer placeholder when a
// bypassed request supplies no address.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ChainConfig contains chain-specific configuration for USDC payments.
type ChainConfig struct {
	// NetworkID is the x402 protocol network identifier (e.g., "base-sepolia").
	NetworkID string

	// ChainID is the EVM chain id used when signing transactions.
	ChainID int64

	// USDCAddress is the official Circle USDC contract address.
	USDCAddress string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals int
}

var (
	// BaseMainnet is the configuration for Base mainnet.
	BaseMainnet = ChainConfig{
		NetworkID:   "base",
		ChainID:     8453,
		USDCAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:    6,
	}

	// BaseSepolia is the configuration for Base Sepolia testnet, the
	// deployment default for this demo.
	BaseSepolia = ChainConfig{
		NetworkID:   "base-sepolia",
		ChainID:     84532,
		USDCAddress: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:    6,
	}
)

// chainsByNetwork indexes the supported EVM chains by network identifier.
var chainsByNetwork = map[string]ChainConfig{
	BaseMainnet.NetworkID: BaseMainnet,
	BaseSepolia.NetworkID: BaseSepolia,
}

// ChainByNetwork returns the chain configuration for a network identifier.
func ChainByNetwork(networkID string) (ChainConfig, error) {
	chain, ok := chainsByNetwork[networkID]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %q", ErrInvalidNetwork, networkID)
	}
	return chain, nil
}

// ChainID returns the EVM chain id for a network identifier.
func ChainID(networkID string) (*big.Int, error) {
	chain, err := ChainByNetwork(networkID)
	if err != nil {
		return nil, err
	}
	return big.NewInt(chain.ChainID), nil
}

// ValidateNetwork validates a network identifier against the supported set.
func ValidateNetwork(networkID string) error {
	if networkID == "" {
		return fmt.Errorf("%w: network cannot be empty", ErrInvalidNetwork)
	}
	if _, ok := chainsByNetwork[networkID]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidNetwork, networkID)
	}
	return nil
}
