package lend

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// ConfigurationError reports a caller- or deployment-configuration problem
// detected before any network call (missing wallet address, malformed
// provider setup).
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// ValidationError reports invalid caller input (bad amount, missing
// parameters). Safe to retry after correction.
type ValidationError struct {
	Msg   string
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// MarketNotAllowedError reports a market outside the configured allowlist.
type MarketNotAllowedError struct {
	MarketID types.MarketID
}

func (e *MarketNotAllowedError) Error() string {
	return fmt.Sprintf("market %s is not in the configured allowlist", e.MarketID)
}

// AssetMismatchError reports a caller-supplied asset that does not match the
// market's configured underlying asset.
type AssetMismatchError struct {
	MarketID types.MarketID
	Expected common.Address
	Got      common.Address
}

func (e *AssetMismatchError) Error() string {
	return fmt.Sprintf("asset %s does not match market %s underlying asset %s",
		e.Got.Hex(), e.MarketID, e.Expected.Hex())
}

// ProtocolError wraps an on-chain or protocol-data read failure with enough
// identifying context to be actionable. The engine never retries these.
type ProtocolError struct {
	Op       string
	MarketID types.MarketID
	Cause    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed for market %s: %v", e.Op, e.MarketID, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }
