// Package morpho implements the vault-style lending adapter: share-based
// ERC-4626 vaults allocating deposits across underlying markets, with a
// supply-weighted APY model and categorized reward APRs.
package morpho

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// wad is the fixed-point scale used by vault rates and fees: 1e18 = 100%.
var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// RewardAPR is one reward stream: the reward token's identity and its APR as
// a decimal ratio.
type RewardAPR struct {
	Token   common.Address
	ChainID uint64
	APR     float64
}

// Allocation is one vault sub-position in an underlying market. SupplyAPY is
// WAD-scaled; a nil SupplyAPY means the allocation has no live market and
// contributes zero weight.
type Allocation struct {
	SupplyAssets *big.Int
	SupplyUSD    float64
	SupplyAPY    *big.Int
	Rewards      []RewardAPR
}

// BaseAPY computes the supply-weighted average of the allocations' market
// supply APYs: sum(apy_i * assets_i) / totalAssets, in WAD fixed point.
// A zero or missing total short-circuits to exactly zero.
func BaseAPY(allocations []Allocation, totalAssets *big.Int) *big.Int {
	if totalAssets == nil || totalAssets.Sign() == 0 {
		return new(big.Int)
	}
	weighted := new(big.Int)
	for _, alloc := range allocations {
		if alloc.SupplyAPY == nil || alloc.SupplyAssets == nil || alloc.SupplyAssets.Sign() == 0 {
			continue
		}
		term := new(big.Int).Mul(alloc.SupplyAPY, alloc.SupplyAssets)
		weighted.Add(weighted, term)
	}
	return weighted.Div(weighted, totalAssets)
}

// ApplyPerformanceFee discounts a WAD APY by the vault's WAD performance
// fee: apy * (1 - fee).
func ApplyPerformanceFee(apyWad, feeWad *big.Int) *big.Int {
	if apyWad == nil || apyWad.Sign() == 0 {
		return new(big.Int)
	}
	if feeWad == nil || feeWad.Sign() == 0 {
		return new(big.Int).Set(apyWad)
	}
	keep := new(big.Int).Sub(wad, feeWad)
	if keep.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(apyWad, keep)
	return out.Div(out, wad)
}

// WadToRatio converts a WAD fixed-point value to a float ratio for
// presentation. The conversion is the last step; all weighting happens in
// integer arithmetic.
func WadToRatio(v *big.Int) float64 {
	if v == nil || v.Sign() == 0 {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(wad)).Float64()
	return f
}

// RewardsBreakdown sums vault-level reward APRs directly and market-level
// reward APRs weighted by each market's share of total supply in USD. The
// result is bucketed by reward-token category.
func RewardsBreakdown(vaultRewards []RewardAPR, allocations []Allocation) (map[types.RewardCategory]float64, float64) {
	perToken := make(map[types.RewardCategory]float64)

	for _, r := range vaultRewards {
		perToken[CategorizeRewardToken(r.Token, r.ChainID)] += r.APR
	}

	var totalUSD float64
	for _, alloc := range allocations {
		totalUSD += alloc.SupplyUSD
	}
	if totalUSD > 0 {
		for _, alloc := range allocations {
			weight := alloc.SupplyUSD / totalUSD
			for _, r := range alloc.Rewards {
				perToken[CategorizeRewardToken(r.Token, r.ChainID)] += r.APR * weight
			}
		}
	}

	var total float64
	for _, apr := range perToken {
		total += apr
	}
	return perToken, total
}

// Reward-token identity tables. Unknown tokens fall into the "other" bucket.
var stableRewardTokens = map[uint64][]common.Address{
	chain.EthereumID: {common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")}, // USDC
	chain.OptimismID: {common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85")}, // USDC
	chain.BaseID:     {common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")}, // USDC
	chain.UnichainID: {common.HexToAddress("0x078D782b760474a361dDA0AF3839290b0EF57AD6")}, // USDC
}

var protocolRewardTokens = map[uint64][]common.Address{
	chain.EthereumID: {common.HexToAddress("0x58D97B57BB95320F9a05dC918Aef65434969c2B2")}, // MORPHO
	chain.OptimismID: {common.HexToAddress("0x4200000000000000000000000000000000000042")}, // OP
	chain.BaseID: {
		common.HexToAddress("0xBAa5CC21fd487B8Fcc2F632f3F4E8D37262a0842"), // MORPHO
		common.HexToAddress("0xA88594D404727625A9437C3f886C7643872296AE"), // WELL
	},
}

// CategorizeRewardToken maps a reward token's identity to a named bucket by
// pure address-and-chain lookup.
func CategorizeRewardToken(token common.Address, chainID uint64) types.RewardCategory {
	for _, addr := range stableRewardTokens[chainID] {
		if addr == token {
			return types.RewardStable
		}
	}
	for _, addr := range protocolRewardTokens[chainID] {
		if addr == token {
			return types.RewardProtocol
		}
	}
	return types.RewardOther
}
