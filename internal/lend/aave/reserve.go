// Package aave implements the pool-style lending adapter: a shared liquidity
// pool paying one flat supply APY per reserve, with receipt tokens minted 1:1
// and a gateway contract for native-currency deposits.
package aave

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// rayDecimals is the pool's fixed-point rate scale: 1e27 = 100%.
const rayDecimals = 27

// secondsPerYear matches the protocol's SECONDS_PER_YEAR constant.
const secondsPerYear = 365 * 24 * 3600

// ReserveData is the subset of the pool's reserve record the adapter uses.
type ReserveData struct {
	LiquidityRate       *big.Int // RAY-scaled supply rate
	LastUpdateTimestamp int64
	ATokenAddress       common.Address
}

// decodeReserveData decodes the ABI-encoded return of getReserveData. The
// struct is sixteen 32-byte words; the adapter reads the liquidity rate
// (word 2), the update timestamp (word 6) and the receipt token (word 8).
func decodeReserveData(raw []byte) (*ReserveData, error) {
	if len(raw) < 9*32 {
		return nil, fmt.Errorf("reserve data too short: %d bytes (need at least %d)", len(raw), 9*32)
	}
	return &ReserveData{
		LiquidityRate:       new(big.Int).SetBytes(raw[2*32 : 3*32]),
		LastUpdateTimestamp: new(big.Int).SetBytes(raw[6*32 : 7*32]).Int64(),
		ATokenAddress:       common.BytesToAddress(raw[8*32+12 : 9*32]),
	}, nil
}

// RayToAPY converts the RAY-scaled annual liquidity rate to a compounded
// yield ratio. The pool reports one flat supply rate per reserve; no
// cross-market weighting applies.
func RayToAPY(rayRate *big.Int) float64 {
	if rayRate == nil || rayRate.Sign() == 0 {
		return 0
	}
	rate := new(big.Float).SetInt(rayRate)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(rayDecimals), nil))
	apr, _ := new(big.Float).Quo(rate, divisor).Float64()
	return math.Pow(1+apr/secondsPerYear, secondsPerYear) - 1
}
