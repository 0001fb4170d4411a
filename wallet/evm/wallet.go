// Package evm implements the wallet interface for EVM-compatible chains.
// Transfers are plain ERC-20 transfer calls signed locally and submitted
// through a JSON-RPC endpoint.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/neverlabs/x402-credits-go"
)

// erc20TransferJSON is the minimal ABI fragment for the transfer call.
const erc20TransferJSON = `[{
	"type": "function",
	"name": "transfer",
	"inputs": [
		{"name": "to", "type": "address"},
		{"name": "amount", "type": "uint256"}
	],
	"outputs": [{"name": "", "type": "bool"}],
	"constant": false
}]`

// receiptPollInterval is how often AwaitConfirmation polls for a receipt.
const receiptPollInterval = 2 * time.Second

// EthClient is the subset of the go-ethereum client used by the wallet.
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// NewEthClient dials a JSON-RPC endpoint. This function can be overridden in
// tests.
var NewEthClient = func(rpcURL string) (EthClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Wallet is an EVM account capable of settling exact-amount ERC-20
// transfers. It implements the wallet.Wallet interface.
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	network    string
	chainID    *big.Int
	rpcURL     string
	client     EthClient
	abi        abi.ABI
}

// WalletOption configures a Wallet.
type WalletOption func(*Wallet) error

// NewWallet creates a new EVM wallet with the given options. A key source
// (WithPrivateKey, WithKeystore, or WithMnemonic) and either WithRPCURL or
// WithClient are required.
func NewWallet(opts ...WalletOption) (*Wallet, error) {
	w := &Wallet{
		network: x402.DefaultNetwork,
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	if w.privateKey == nil {
		return nil, x402.ErrInvalidKey
	}
	chain, err := x402.ChainByNetwork(w.network)
	if err != nil {
		return nil, err
	}
	if w.client == nil {
		if w.rpcURL == "" {
			return nil, errors.New("evm: an RPC URL or client is required")
		}
		client, err := NewEthClient(w.rpcURL)
		if err != nil {
			return nil, fmt.Errorf("evm: failed to dial RPC endpoint: %w", err)
		}
		w.client = client
	}

	w.address = crypto.PubkeyToAddress(w.privateKey.PublicKey)
	w.chainID = big.NewInt(chain.ChainID)

	w.abi, err = abi.JSON(strings.NewReader(erc20TransferJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: failed to parse transfer ABI: %w", err)
	}

	return w, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) WalletOption {
	return func(w *Wallet) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")

		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return x402.ErrInvalidKey
		}

		w.privateKey = privateKey
		return nil
	}
}

// WithNetwork sets the blockchain network. The network must be one of the
// configured chains.
func WithNetwork(network string) WalletOption {
	return func(w *Wallet) error {
		if err := x402.ValidateNetwork(network); err != nil {
			return err
		}
		w.network = network
		return nil
	}
}

// WithRPCURL sets the JSON-RPC endpoint to dial.
func WithRPCURL(rpcURL string) WalletOption {
	return func(w *Wallet) error {
		w.rpcURL = rpcURL
		return nil
	}
}

// WithClient sets a pre-built RPC client, bypassing the dial.
func WithClient(client EthClient) WalletOption {
	return func(w *Wallet) error {
		w.client = client
		return nil
	}
}

// Address implements wallet.Wallet.
func (w *Wallet) Address() string {
	return w.address.Hex()
}

// Network implements wallet.Wallet.
func (w *Wallet) Network() string {
	return w.network
}

// TransferToken implements wallet.Wallet. It signs and submits an ERC-20
// transfer of amount atomic units to the recipient and returns the
// transaction hash. The transaction is submitted with EIP-1559 fee fields.
func (w *Wallet) TransferToken(ctx context.Context, asset, to string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", x402.ErrInvalidAmount
	}

	contractAddress := common.HexToAddress(asset)

	txData, err := w.abi.Pack("transfer", common.HexToAddress(to), amount)
	if err != nil {
		return "", fmt.Errorf("failed to pack transfer call: %w", err)
	}

	txNonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return "", fmt.Errorf("failed to get pending nonce: %w", err)
	}

	gasTipCap, err := w.client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}

	blockHeader, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get block header: %w", err)
	}
	if blockHeader.BaseFee == nil {
		return "", errors.New("block header missing base fee: network may not support EIP-1559")
	}

	// Gas fee cap: 2x base fee + tip, so the transaction survives a few
	// base-fee increases while pending.
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(blockHeader.BaseFee, big.NewInt(2)),
		gasTipCap,
	)

	gasLimit, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From: w.address,
		To:   &contractAddress,
		Data: txData,
	})
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}

	// Add 20% buffer to the gas estimate
	gasLimit = gasLimit * 120 / 100

	transaction := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     txNonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &contractAddress,
		Value:     big.NewInt(0),
		Data:      txData,
	})

	signedTx, err := ethtypes.SignTx(transaction, ethtypes.NewLondonSigner(w.chainID), w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// AwaitConfirmation implements wallet.Wallet. It polls for the transaction
// receipt until it is mined or the context is done, and returns an error
// when the transaction reverted.
func (w *Wallet) AwaitConfirmation(ctx context.Context, txID string) error {
	txHash := common.HexToHash(txID)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", txID)
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet, keep polling.
		default:
			return fmt.Errorf("failed to get transaction receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
