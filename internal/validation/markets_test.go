package validation

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

func validMarket() types.Market {
	return types.Market{
		ID:     types.MarketID{ChainID: 8453},
		Asset:  types.USDC,
		Supply: types.MarketSupply{TotalAssets: big.NewInt(1_000_000)},
		APY:    types.APYBreakdown{Total: 0.05, Native: 0.04, TotalRewards: 0.01},
	}
}

func TestCheckMarket(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*types.Market)
		errText string
	}{
		{name: "valid market", mutate: func(m *types.Market) {}},
		{
			name:    "missing total assets",
			mutate:  func(m *types.Market) { m.Supply.TotalAssets = nil },
			errText: "missing total assets",
		},
		{
			name:    "negative total assets",
			mutate:  func(m *types.Market) { m.Supply.TotalAssets = big.NewInt(-1) },
			errText: "negative or missing total assets",
		},
		{
			name:    "negative native apy",
			mutate:  func(m *types.Market) { m.APY.Native = -0.01 },
			errText: "negative native APY",
		},
		{
			name:    "negative rewards",
			mutate:  func(m *types.Market) { m.APY.TotalRewards = -0.01 },
			errText: "negative rewards APR",
		},
		{
			name:    "implausible total apy",
			mutate:  func(m *types.Market) { m.APY.Total = 15.0 },
			errText: "implausible APY",
		},
		{
			name: "negative per-token reward",
			mutate: func(m *types.Market) {
				m.APY.PerToken = map[types.RewardCategory]float64{types.RewardStable: -0.01}
			},
			errText: "negative stable reward APR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			tt.mutate(&m)
			err := CheckMarket(&m)
			if tt.errText == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errText)
		})
	}

	assert.Error(t, CheckMarket(nil))
}

func TestCheckMarketWithOptions(t *testing.T) {
	m := validMarket()
	m.APY.Total = 2.0

	assert.NoError(t, CheckMarket(&m), "within the default ceiling")
	assert.Error(t, CheckMarketWithOptions(&m, Options{MaxAPY: 1.0}), "over a tighter ceiling")
}

func TestFilterInvalid(t *testing.T) {
	good := validMarket()
	bad := validMarket()
	bad.APY.Total = 50.0

	filtered := FilterInvalid([]types.Market{good, bad})
	assert.Len(t, filtered, 1)
	assert.Equal(t, good.ID, filtered[0].ID)

	assert.Empty(t, FilterInvalid(nil))
}
