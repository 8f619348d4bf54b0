package morpho

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// supportedChainIDs lists the chains the vault protocol is deployed on.
var supportedChainIDs = []uint64{
	chain.EthereumID,
	chain.OptimismID,
	chain.UnichainID,
	chain.BaseID,
	chain.BaseSepoliaID,
}

const vaultABIJSON = `[
	{"name":"asset","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"name","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"name":"totalAssets","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"fee","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint96"}]},
	{"name":"owner","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"curator","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"convertToAssets","type":"function","stateMutability":"view","inputs":[{"name":"shares","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"deposit","type":"function","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"withdraw","type":"function","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const erc20MetadataABIJSON = `[
	{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	vaultABI      abi.ABI
	erc20MetaABI  abi.ABI
	parseABIsOnce sync.Once
)

func parseABIs() {
	parseABIsOnce.Do(func() {
		var err error
		vaultABI, err = abi.JSON(strings.NewReader(vaultABIJSON))
		if err != nil {
			panic(fmt.Sprintf("failed to parse vault ABI: %v", err))
		}
		erc20MetaABI, err = abi.JSON(strings.NewReader(erc20MetadataABIJSON))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 metadata ABI: %v", err))
		}
	})
}

// vaultShareDecimals is fixed by the vault implementation.
const vaultShareDecimals = 18

// Adapter implements lend.Adapter for share-based vaults.
type Adapter struct {
	chains *chain.Manager
	data   *DataClient
}

// NewAdapter builds the vault adapter over the chain manager and off-chain
// data client.
func NewAdapter(chains *chain.Manager, data *DataClient) *Adapter {
	parseABIs()
	if data == nil {
		data = NewDataClient("")
	}
	return &Adapter{chains: chains, data: data}
}

// Protocol returns the adapter's protocol tag.
func (a *Adapter) Protocol() types.Protocol {
	return types.ProtocolMorpho
}

// SupportedChainIDs lists the chains the protocol supports.
func (a *Adapter) SupportedChainIDs() []uint64 {
	out := make([]uint64, len(supportedChainIDs))
	copy(out, supportedChainIDs)
	return out
}

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func callView(ctx context.Context, caller contractCaller, parsed abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed on %s: %w", method, to.Hex(), err)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}

// GetMarket reads the vault fresh from the chain and assembles the APY
// breakdown from allocations plus best-effort rewards.
func (a *Adapter) GetMarket(ctx context.Context, marketID types.MarketID) (*types.Market, error) {
	client, err := a.chains.Client(marketID.ChainID)
	if err != nil {
		return nil, err
	}
	vault := marketID.Address

	assetOut, err := callView(ctx, client, vaultABI, vault, "asset")
	if err != nil {
		return nil, err
	}
	assetAddr := assetOut[0].(common.Address)

	nameOut, err := callView(ctx, client, vaultABI, vault, "name")
	if err != nil {
		return nil, err
	}
	totalAssetsOut, err := callView(ctx, client, vaultABI, vault, "totalAssets")
	if err != nil {
		return nil, err
	}
	totalSupplyOut, err := callView(ctx, client, vaultABI, vault, "totalSupply")
	if err != nil {
		return nil, err
	}
	feeOut, err := callView(ctx, client, vaultABI, vault, "fee")
	if err != nil {
		return nil, err
	}
	ownerOut, err := callView(ctx, client, vaultABI, vault, "owner")
	if err != nil {
		return nil, err
	}
	curatorOut, err := callView(ctx, client, vaultABI, vault, "curator")
	if err != nil {
		return nil, err
	}

	decimalsOut, err := callView(ctx, client, erc20MetaABI, assetAddr, "decimals")
	if err != nil {
		return nil, err
	}
	symbolOut, err := callView(ctx, client, erc20MetaABI, assetAddr, "symbol")
	if err != nil {
		return nil, err
	}

	totalAssets := totalAssetsOut[0].(*big.Int)
	feeWad := feeOut[0].(*big.Int)

	state, err := a.data.FetchVaultState(ctx, vault, marketID.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vault allocations: %w", err)
	}

	baseAPY := BaseAPY(state.Allocations, totalAssets)
	afterFee := ApplyPerformanceFee(baseAPY, feeWad)

	// Rewards are best-effort: when the upstream could not serve them the
	// figures come from the cache or degrade to zero, marked stale.
	if state.RewardsStale {
		logrus.Warnf("Rewards unavailable for vault %s on chain %d, using cached or zero figures",
			vault.Hex(), marketID.ChainID)
	}
	perToken, totalRewards := RewardsBreakdown(state.Rewards, state.Allocations)

	feeRatio := WadToRatio(feeWad)
	apy := types.APYBreakdown{
		Native:         WadToRatio(baseAPY),
		PerformanceFee: feeRatio,
		TotalRewards:   totalRewards,
		PerToken:       perToken,
		Total:          WadToRatio(afterFee) + totalRewards,
		RewardsStale:   state.RewardsStale,
	}

	return &types.Market{
		ID:   marketID,
		Name: nameOut[0].(string),
		Asset: types.Asset{
			Addresses: map[uint64]common.Address{marketID.ChainID: assetAddr},
			Decimals:  decimalsOut[0].(uint8),
			Symbol:    symbolOut[0].(string),
			Name:      symbolOut[0].(string),
			Kind:      types.AssetERC20,
		},
		Supply: types.MarketSupply{
			TotalAssets: totalAssets,
			TotalShares: totalSupplyOut[0].(*big.Int),
		},
		APY: apy,
		Metadata: types.MarketMetadata{
			Owner:               ownerOut[0].(common.Address),
			Curator:             curatorOut[0].(common.Address),
			FeeBps:              uint32(feeRatio * 10000),
			LastUpdateTimestamp: time.Now().Unix(),
		},
	}, nil
}

// OpenPosition builds the asset approval to the vault plus the deposit call.
func (a *Adapter) OpenPosition(ctx context.Context, amount *big.Int, asset types.Asset, marketID types.MarketID, wallet common.Address) (*types.LendTransaction, error) {
	if asset.IsNative() {
		return nil, fmt.Errorf("vault deposits require an ERC-20 asset, got native %s", asset.Symbol)
	}
	assetAddr, ok := asset.AddressOn(marketID.ChainID)
	if !ok {
		return nil, fmt.Errorf("asset %s has no address on chain %d", asset.Symbol, marketID.ChainID)
	}

	market, err := a.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	approval, err := lend.BuildApprovalTx(assetAddr, marketID.Address, amount)
	if err != nil {
		return nil, err
	}
	depositData, err := vaultABI.Pack("deposit", amount, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deposit: %w", err)
	}
	action := types.TransactionData{To: marketID.Address, Data: depositData, Value: new(big.Int)}

	return lend.BuildLendTransaction(amount, assetAddr, marketID, market.APY, &approval, action, types.LendOpenPosition), nil
}

// ClosePosition builds the withdraw call. No approval is needed: the vault
// burns shares from the owner directly.
func (a *Adapter) ClosePosition(ctx context.Context, amount *big.Int, market *types.Market, wallet common.Address) (*types.LendTransaction, error) {
	assetAddr, ok := market.Asset.AddressOn(market.ID.ChainID)
	if !ok {
		return nil, fmt.Errorf("market asset %s has no address on chain %d", market.Asset.Symbol, market.ID.ChainID)
	}
	withdrawData, err := vaultABI.Pack("withdraw", amount, wallet, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode withdraw: %w", err)
	}
	action := types.TransactionData{To: market.ID.Address, Data: withdrawData, Value: new(big.Int)}

	return lend.BuildLendTransaction(amount, assetAddr, market.ID, market.APY, nil, action, types.LendClosePosition), nil
}

// GetPosition reads the wallet's share balance and its current asset value.
func (a *Adapter) GetPosition(ctx context.Context, wallet common.Address, marketID types.MarketID) (*types.Position, error) {
	client, err := a.chains.Client(marketID.ChainID)
	if err != nil {
		return nil, err
	}
	sharesOut, err := callView(ctx, client, vaultABI, marketID.Address, "balanceOf", wallet)
	if err != nil {
		return nil, err
	}
	shares := sharesOut[0].(*big.Int)

	balanceOut, err := callView(ctx, client, vaultABI, marketID.Address, "convertToAssets", shares)
	if err != nil {
		return nil, err
	}
	balance := balanceOut[0].(*big.Int)

	assetOut, err := callView(ctx, client, vaultABI, marketID.Address, "asset")
	if err != nil {
		return nil, err
	}
	decimalsOut, err := callView(ctx, client, erc20MetaABI, assetOut[0].(common.Address), "decimals")
	if err != nil {
		return nil, err
	}

	return &types.Position{
		Balance:          balance,
		BalanceFormatted: types.FromBaseUnits(balance, decimalsOut[0].(uint8)),
		Shares:           shares,
		SharesFormatted:  types.FromBaseUnits(shares, vaultShareDecimals),
		MarketID:         marketID,
	}, nil
}
