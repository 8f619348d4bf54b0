// Package aggregate computes cross-market yield statistics for listing
// responses. Aggregation weights by each market's supplied assets, so large
// markets dominate the headline figure the way they dominate real exposure.
package aggregate

import (
	"sort"

	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// Summary condenses a set of market snapshots into headline figures. APY
// values are decimal ratios, TotalSupplied is in the asset's human units.
type Summary struct {
	MarketCount   int     `json:"marketCount"`
	WeightedAPY   float64 `json:"weightedApy"`
	MedianAPY     float64 `json:"medianApy"`
	BestAPY       float64 `json:"bestApy"`
	TotalSupplied float64 `json:"totalSupplied"`
}

// Summarize computes the supply-weighted average, median and best total APY
// over the given markets. Markets with no readable supply contribute to the
// count but not to the weighted figures.
func Summarize(markets []types.Market) Summary {
	s := Summary{MarketCount: len(markets)}
	if len(markets) == 0 {
		return s
	}

	var weighted float64
	for i := range markets {
		m := &markets[i]
		supplied := suppliedUnits(m)
		if supplied > 0 {
			weighted += m.APY.Total * supplied
			s.TotalSupplied += supplied
		}
		if m.APY.Total > s.BestAPY {
			s.BestAPY = m.APY.Total
		}
	}
	if s.TotalSupplied > 0 {
		s.WeightedAPY = weighted / s.TotalSupplied
	}
	s.MedianAPY = MedianAPY(markets)
	return s
}

// MedianAPY returns the median total APY across the markets, robust to a
// single market reporting an implausible rate.
func MedianAPY(markets []types.Market) float64 {
	if len(markets) == 0 {
		return 0
	}
	values := make([]float64, 0, len(markets))
	for i := range markets {
		values = append(values, markets[i].APY.Total)
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

// suppliedUnits converts a market's total assets from base units to human
// units. The float approximation is fine for weighting; transaction amounts
// never pass through here.
func suppliedUnits(m *types.Market) float64 {
	if m.Supply.TotalAssets == nil || m.Supply.TotalAssets.Sign() <= 0 {
		return 0
	}
	f, _ := types.FromBaseUnits(m.Supply.TotalAssets, m.Asset.Decimals).Float64()
	return f
}
