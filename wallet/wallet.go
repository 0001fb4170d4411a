// Package wallet defines the signing-capability collaborator consumed by the
// x402 settlement client. Implementations hold a connected chain address and
// can submit and confirm token transfers.
package wallet

import (
	"context"
	"math/big"
)

// Wallet is a connected account that can settle exact-amount token
// transfers. Implementations live in subpackages (currently wallet/evm).
type Wallet interface {
	// Address returns the connected account's address.
	Address() string

	// Network returns the chain identifier the wallet is connected to.
	Network() string

	// TransferToken submits a token transfer of amount atomic units of the
	// asset contract to the recipient and returns the transaction id.
	// Submission is fire-and-forget: a returned id does not imply finality.
	TransferToken(ctx context.Context, asset, to string, amount *big.Int) (string, error)

	// AwaitConfirmation blocks until the transaction reaches finality or the
	// context is done. It returns an error when the network reports
	// non-success finality. Submitted transfers cannot be cancelled;
	// abandoning the wait does not roll the transfer back.
	AwaitConfirmation(ctx context.Context, txID string) error
}
