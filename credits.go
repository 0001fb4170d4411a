package x402

import (
	"fmt"
	"math/big"
)

// DefaultCreditsPerUnit is the deployment's conversion rate: credits
// allocated per whole unit of the asset.
const DefaultCreditsPerUnit = 10

// CreditsForAmount converts a settled amount in atomic units to a credit
// amount at the given rate (credits per whole asset unit). The result is
// floor-rounded: 999999 atomic units of a 6-decimal asset at rate 10 yields
// 9 credits, not 10.
func CreditsForAmount(amount string, decimals int, rate int64) (int64, error) {
	if rate < 0 {
		return 0, fmt.Errorf("%w: negative rate %d", ErrInvalidAmount, rate)
	}
	if decimals < 0 {
		return 0, fmt.Errorf("%w: negative decimals %d", ErrInvalidAmount, decimals)
	}

	atomic, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if atomic.Sign() < 0 {
		return 0, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, amount)
	}

	// credits = floor(atomic * rate / 10^decimals)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	credits := new(big.Int).Mul(atomic, big.NewInt(rate))
	credits.Quo(credits, scale)

	if !credits.IsInt64() {
		return 0, fmt.Errorf("%w: credit amount overflows int64", ErrInvalidAmount)
	}
	return credits.Int64(), nil
}
