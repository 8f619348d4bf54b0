// Package validation provides sanity checks for market data read from lending
// protocols, protecting callers from implausible or corrupted on-chain reads.
package validation

import (
	"fmt"

	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// Options holds the plausibility thresholds for market checks.
type Options struct {
	// MaxAPY is the maximum plausible APY ratio (10.0 = 1000%).
	MaxAPY float64
}

// DefaultOptions returns the thresholds used when callers pass none.
func DefaultOptions() Options {
	return Options{MaxAPY: 10.0}
}

// CheckMarket validates a freshly read market snapshot with default options.
func CheckMarket(m *types.Market) error {
	return CheckMarketWithOptions(m, DefaultOptions())
}

// CheckMarketWithOptions validates a market snapshot against custom
// thresholds. A failing check means the read itself is suspect; callers
// surface it as a protocol error rather than serving the data.
func CheckMarketWithOptions(m *types.Market, opts Options) error {
	if m == nil {
		return fmt.Errorf("nil market")
	}
	if m.Supply.TotalAssets == nil || m.Supply.TotalAssets.Sign() < 0 {
		return fmt.Errorf("market %s: negative or missing total assets", m.ID)
	}
	if m.APY.Native < 0 {
		return fmt.Errorf("market %s: negative native APY %f", m.ID, m.APY.Native)
	}
	if m.APY.TotalRewards < 0 {
		return fmt.Errorf("market %s: negative rewards APR %f", m.ID, m.APY.TotalRewards)
	}
	if m.APY.Total > opts.MaxAPY {
		return fmt.Errorf("market %s: implausible APY %f (max %f)", m.ID, m.APY.Total, opts.MaxAPY)
	}
	for category, apr := range m.APY.PerToken {
		if apr < 0 {
			return fmt.Errorf("market %s: negative %s reward APR %f", m.ID, category, apr)
		}
	}
	return nil
}

// FilterInvalid drops markets that fail sanity checks, for callers that
// prefer partial results over a hard failure when listing many markets.
func FilterInvalid(markets []types.Market) []types.Market {
	valid := make([]types.Market, 0, len(markets))
	for i := range markets {
		if err := CheckMarket(&markets[i]); err == nil {
			valid = append(valid, markets[i])
		}
	}
	return valid
}
