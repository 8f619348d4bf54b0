package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Protocol tags the lending protocol a market belongs to. The set is closed:
// adapters are selected by this tag at configuration time.
type Protocol string

const (
	ProtocolMorpho Protocol = "morpho"
	ProtocolAave   Protocol = "aave"
)

// MarketID uniquely identifies a lending market (vault or pool) as an
// (address, chain) pair. Addresses are normalized by common.Address so
// equality is case-insensitive on the hex representation.
type MarketID struct {
	Address common.Address `json:"address"`
	ChainID uint64         `json:"chainId"`
}

func (m MarketID) String() string {
	return fmt.Sprintf("%s@%d", m.Address.Hex(), m.ChainID)
}

// MarketConfig is an allowlist entry: a market the provider is permitted to
// operate on, fixed at provider construction.
type MarketConfig struct {
	ID       MarketID `json:"id"`
	Name     string   `json:"name"`
	Asset    Asset    `json:"asset"`
	Protocol Protocol `json:"protocol"`
}

// RewardCategory buckets reward tokens by identity for the APY breakdown.
type RewardCategory string

const (
	RewardStable   RewardCategory = "stable"
	RewardProtocol RewardCategory = "protocol"
	RewardOther    RewardCategory = "other"
)

// APYBreakdown decomposes a market's yield. All values are decimal ratios
// (0.05 means 5%). TotalRewards is the sum of PerToken; Total is the
// fee-adjusted native APY plus TotalRewards.
type APYBreakdown struct {
	Total          float64                    `json:"total"`
	Native         float64                    `json:"native"`
	TotalRewards   float64                    `json:"totalRewards"`
	PerformanceFee float64                    `json:"performanceFee"`
	PerToken       map[RewardCategory]float64 `json:"perTokenRewards,omitempty"`
	// RewardsStale is set when the best-effort rewards source was
	// unavailable and the reward figures degraded to zero.
	RewardsStale bool `json:"rewardsStale,omitempty"`
}

// MarketSupply holds the market's aggregate supply-side figures in base units.
type MarketSupply struct {
	TotalAssets *big.Int `json:"totalAssets"`
	TotalShares *big.Int `json:"totalShares"`
}

// MarketMetadata carries descriptive on-chain fields that do not affect
// transaction construction.
type MarketMetadata struct {
	Owner               common.Address `json:"owner"`
	Curator             common.Address `json:"curator"`
	FeeBps              uint32         `json:"feeBps"`
	LastUpdateTimestamp int64          `json:"lastUpdateTimestamp"`
}

// Market is a runtime snapshot of one lending market. Instances are built
// fresh from a discrete on-chain read on every query and never cached.
type Market struct {
	ID       MarketID       `json:"marketId"`
	Name     string         `json:"name"`
	Asset    Asset          `json:"asset"`
	Supply   MarketSupply   `json:"supply"`
	APY      APYBreakdown   `json:"apy"`
	Metadata MarketMetadata `json:"metadata"`
}

// Position is a wallet's holding in one market, recomputed on demand.
type Position struct {
	Balance          *big.Int        `json:"balance"`
	BalanceFormatted decimal.Decimal `json:"balanceFormatted"`
	Shares           *big.Int        `json:"shares"`
	SharesFormatted  decimal.Decimal `json:"sharesFormatted"`
	MarketID         MarketID        `json:"marketId"`
}
