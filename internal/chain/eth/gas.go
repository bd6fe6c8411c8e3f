package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/reviewchain/reviewchain/internal/chain"
	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// GasSpeed represents the transaction speed preference.
type GasSpeed string

const (
	// GasSpeedSlow pays a lower tip for cheaper, slower inclusion.
	GasSpeedSlow GasSpeed = "slow"
	// GasSpeedMedium pays the node's suggested tip.
	GasSpeedMedium GasSpeed = "medium"
	// GasSpeedFast pays a higher tip for faster inclusion.
	GasSpeedFast GasSpeed = "fast"

	// slowMultiplier reduces the tip by 20% for slow transactions.
	slowMultiplier = 0.8
	// fastMultiplier increases the tip by 20% for fast transactions.
	fastMultiplier = 1.2

	// baseFeeHeadroom is how many base fees the fee cap tolerates.
	baseFeeHeadroom = 2
)

// ParseGasSpeed parses a string into a GasSpeed.
func ParseGasSpeed(s string) (GasSpeed, error) {
	switch s {
	case "slow":
		return GasSpeedSlow, nil
	case "", "medium":
		return GasSpeedMedium, nil
	case "fast":
		return GasSpeedFast, nil
	default:
		err := reviewerr.Newf(reviewerr.ErrValidationFailed, "invalid gas speed %q", s)
		return "", reviewerr.WithDetails(err, map[string]string{
			"field":   "gas_speed",
			"allowed": "slow, medium, or fast",
		})
	}
}

func (s GasSpeed) multiplier() float64 {
	switch s {
	case GasSpeedSlow:
		return slowMultiplier
	case GasSpeedFast:
		return fastMultiplier
	default:
		return 1
	}
}

// FeeQuote is the fee part of a transaction. Dynamic quotes carry a tip
// and fee cap; legacy quotes carry a single gas price.
type FeeQuote struct {
	TipCap   *big.Int
	FeeCap   *big.Int
	GasPrice *big.Int
}

// IsDynamic reports whether the quote is for an EIP-1559 transaction.
func (q FeeQuote) IsDynamic() bool {
	return q.FeeCap != nil
}

// PricePerGas is the most the transaction pays per unit of gas.
func (q FeeQuote) PricePerGas() *big.Int {
	if q.IsDynamic() {
		return q.FeeCap
	}
	return q.GasPrice
}

// MaxCost is the upper bound on the fee for gasLimit units of gas.
func (q FeeQuote) MaxCost(gasLimit uint64) *big.Int {
	price := q.PricePerGas()
	if price == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit))
}

// SuggestFees quotes fees from the latest header. Chains with a base fee
// get an EIP-1559 quote; the rest fall back to a legacy gas price.
func SuggestFees(ctx context.Context, backend chain.Backend, speed GasSpeed) (FeeQuote, error) {
	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("fetching latest header: %w", err)
	}

	if head.BaseFee != nil {
		tip, err := backend.SuggestGasTipCap(ctx)
		if err != nil {
			return FeeQuote{}, fmt.Errorf("suggesting tip: %w", err)
		}
		tip = multiplyBigInt(tip, speed.multiplier())
		feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(baseFeeHeadroom))
		feeCap.Add(feeCap, tip)
		return FeeQuote{TipCap: tip, FeeCap: feeCap}, nil
	}

	price, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return FeeQuote{}, fmt.Errorf("suggesting gas price: %w", err)
	}
	return FeeQuote{GasPrice: multiplyBigInt(price, speed.multiplier())}, nil
}

// GasLimit pads an estimate by bufferPercent and bounds it by ceiling. An
// estimate that alone exceeds the ceiling is refused. A zero ceiling
// disables the bound.
func GasLimit(estimate, bufferPercent, ceiling uint64) (uint64, error) {
	if ceiling > 0 && estimate > ceiling {
		err := reviewerr.Newf(reviewerr.ErrGasCeilingExceeded,
			"estimated gas %d exceeds the ceiling of %d", estimate, ceiling)
		return 0, reviewerr.WithDetails(err, map[string]string{
			"estimate": fmt.Sprintf("%d", estimate),
			"ceiling":  fmt.Sprintf("%d", ceiling),
		})
	}

	limit := estimate + estimate*bufferPercent/100
	if ceiling > 0 && limit > ceiling {
		limit = ceiling
	}
	return limit, nil
}

// newTransaction builds an unsigned transaction priced by quote.
func newTransaction(quote FeeQuote, chainID *big.Int, nonce uint64, to common.Address, gasLimit uint64, data []byte) *types.Transaction {
	if quote.IsDynamic() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: quote.TipCap,
			GasFeeCap: quote.FeeCap,
			Gas:       gasLimit,
			To:        &to,
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: quote.GasPrice,
		Gas:      gasLimit,
		To:       &to,
		Data:     data,
	})
}

// FormatGasPrice formats a gas price in wei to a human-readable Gwei string.
func FormatGasPrice(weiPrice *big.Int) string {
	if weiPrice == nil {
		return "0 Gwei"
	}

	gwei := new(big.Float).SetInt(weiPrice)
	gwei.Quo(gwei, new(big.Float).SetInt64(1_000_000_000))

	return fmt.Sprintf("%.2f Gwei", gwei)
}

// multiplyBigInt multiplies a big.Int by a float multiplier.
func multiplyBigInt(n *big.Int, multiplier float64) *big.Int {
	if multiplier == 1 {
		return new(big.Int).Set(n)
	}
	f := new(big.Float).SetInt(n)
	f.Mul(f, new(big.Float).SetFloat64(multiplier))

	result, _ := f.Int(nil)
	return result
}
