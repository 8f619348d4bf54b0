// Package types contains shared type definitions used across multiple packages:
// assets, markets, positions and the transaction payloads the lending and
// wallet layers exchange.
package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetKind distinguishes the chain's native currency from ERC-20 tokens.
type AssetKind string

const (
	AssetNative AssetKind = "native"
	AssetERC20  AssetKind = "erc20"
)

// Asset describes a token deployed on one or more chains. It is a shared
// value type with no ownership semantics; the address map is keyed by chain ID.
type Asset struct {
	Addresses map[uint64]common.Address `json:"addresses"`
	Decimals  uint8                     `json:"decimals"`
	Symbol    string                    `json:"symbol"`
	Name      string                    `json:"name"`
	Kind      AssetKind                 `json:"kind"`
}

// AddressOn returns the asset's address on the given chain.
func (a Asset) AddressOn(chainID uint64) (common.Address, bool) {
	addr, ok := a.Addresses[chainID]
	return addr, ok
}

// IsNative reports whether the asset is the chain's native currency.
func (a Asset) IsNative() bool {
	return a.Kind == AssetNative
}

// ToBaseUnits converts a human-readable decimal amount to base units using
// the asset's declared decimals. The conversion is exact fixed-point integer
// arithmetic; amounts with more fractional digits than the asset supports,
// and non-positive amounts, are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts a base-unit integer amount back to its
// human-readable decimal representation.
func FromBaseUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, 0).Shift(-int32(decimals))
}

// ParseAmount parses a human-readable amount string and converts it to base
// units in one step.
func ParseAmount(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return ToBaseUnits(d, decimals)
}
