package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// supportedChainIDs lists the chains the pool protocol is deployed on.
var supportedChainIDs = []uint64{
	chain.EthereumID,
	chain.OptimismID,
	chain.BaseID,
}

// wrappedNativeGateway maps each chain to its native-currency gateway and
// the wrapped-native token the pool actually holds.
var wrappedNativeGateway = map[uint64]struct {
	Gateway common.Address
	Wrapped common.Address
}{
	chain.EthereumID: {
		Gateway: common.HexToAddress("0xA434D495249abE33E031Fe71a969B81f3c07950D"),
		Wrapped: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	},
	chain.OptimismID: {
		Gateway: common.HexToAddress("0xe9E52021f4e11DEAD8661812A0A6c8627abA2a54"),
		Wrapped: common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
	chain.BaseID: {
		Gateway: common.HexToAddress("0x8be473dCfA93132658821E67CbEB684ec8Ea2E74"),
		Wrapped: common.HexToAddress("0x4200000000000000000000000000000000000006"),
	},
}

const poolABIJSON = `[
	{"name":"supply","type":"function","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
	{"name":"withdraw","type":"function","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getReserveData","type":"function","stateMutability":"view","inputs":[{"name":"asset","type":"address"}],"outputs":[]}
]`

const gatewayABIJSON = `[
	{"name":"depositETH","type":"function","stateMutability":"payable","inputs":[{"name":"pool","type":"address"},{"name":"onBehalfOf","type":"address"},{"name":"referralCode","type":"uint16"}],"outputs":[]},
	{"name":"withdrawETH","type":"function","inputs":[{"name":"pool","type":"address"},{"name":"amount","type":"uint256"},{"name":"to","type":"address"}],"outputs":[]}
]`

const aTokenABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"totalSupply","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	poolABI       abi.ABI
	gatewayABI    abi.ABI
	aTokenABI     abi.ABI
	parseABIsOnce sync.Once
)

func parseABIs() {
	parseABIsOnce.Do(func() {
		mustParse := func(name, raw string) abi.ABI {
			parsed, err := abi.JSON(strings.NewReader(raw))
			if err != nil {
				panic(fmt.Sprintf("failed to parse %s ABI: %v", name, err))
			}
			return parsed
		}
		poolABI = mustParse("pool", poolABIJSON)
		gatewayABI = mustParse("gateway", gatewayABIJSON)
		aTokenABI = mustParse("aToken", aTokenABIJSON)
	})
}

// Adapter implements lend.Adapter for the shared liquidity pool. Each
// configured market is one (pool, asset) reserve; the adapter keeps the
// asset table because reserve reads are keyed by asset address.
type Adapter struct {
	chains  *chain.Manager
	markets map[types.MarketID]types.MarketConfig
}

// NewAdapter builds the pool adapter over the given reserve configs.
func NewAdapter(chains *chain.Manager, markets []types.MarketConfig) *Adapter {
	parseABIs()
	table := make(map[types.MarketID]types.MarketConfig, len(markets))
	for _, mc := range markets {
		table[mc.ID] = mc
	}
	return &Adapter{chains: chains, markets: table}
}

// Protocol returns the adapter's protocol tag.
func (a *Adapter) Protocol() types.Protocol {
	return types.ProtocolAave
}

// SupportedChainIDs lists the chains the protocol supports.
func (a *Adapter) SupportedChainIDs() []uint64 {
	out := make([]uint64, len(supportedChainIDs))
	copy(out, supportedChainIDs)
	return out
}

func (a *Adapter) marketConfig(marketID types.MarketID) (types.MarketConfig, error) {
	mc, ok := a.markets[marketID]
	if !ok {
		return types.MarketConfig{}, fmt.Errorf("no reserve configured for market %s", marketID)
	}
	return mc, nil
}

// reserveAsset resolves the pool-side asset address for a market: the
// wrapped-native token when the configured asset is the chain's currency.
func (a *Adapter) reserveAsset(mc types.MarketConfig) (common.Address, error) {
	if mc.Asset.IsNative() {
		gw, ok := wrappedNativeGateway[mc.ID.ChainID]
		if !ok {
			return common.Address{}, fmt.Errorf("no native gateway on chain %d", mc.ID.ChainID)
		}
		return gw.Wrapped, nil
	}
	addr, ok := mc.Asset.AddressOn(mc.ID.ChainID)
	if !ok {
		return common.Address{}, fmt.Errorf("asset %s has no address on chain %d", mc.Asset.Symbol, mc.ID.ChainID)
	}
	return addr, nil
}

func (a *Adapter) readReserve(ctx context.Context, marketID types.MarketID, asset common.Address) (*ReserveData, error) {
	client, err := a.chains.Client(marketID.ChainID)
	if err != nil {
		return nil, err
	}
	data, err := poolABI.Pack("getReserveData", asset)
	if err != nil {
		return nil, fmt.Errorf("failed to pack getReserveData: %w", err)
	}
	to := marketID.Address
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getReserveData call failed on %s: %w", to.Hex(), err)
	}
	return decodeReserveData(raw)
}

// GetMarket reads the reserve fresh from the pool. Supply figures come from
// the receipt token, which tracks deposits 1:1.
func (a *Adapter) GetMarket(ctx context.Context, marketID types.MarketID) (*types.Market, error) {
	mc, err := a.marketConfig(marketID)
	if err != nil {
		return nil, err
	}
	asset, err := a.reserveAsset(mc)
	if err != nil {
		return nil, err
	}
	reserve, err := a.readReserve(ctx, marketID, asset)
	if err != nil {
		return nil, err
	}

	client, err := a.chains.Client(marketID.ChainID)
	if err != nil {
		return nil, err
	}
	supplyData, err := aTokenABI.Pack("totalSupply")
	if err != nil {
		return nil, fmt.Errorf("failed to pack totalSupply: %w", err)
	}
	aToken := reserve.ATokenAddress
	rawSupply, err := client.CallContract(ctx, ethereum.CallMsg{To: &aToken, Data: supplyData}, nil)
	if err != nil {
		return nil, fmt.Errorf("totalSupply call failed on %s: %w", aToken.Hex(), err)
	}
	supplyOut, err := aTokenABI.Unpack("totalSupply", rawSupply)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack totalSupply: %w", err)
	}
	totalSupply := supplyOut[0].(*big.Int)

	apy := RayToAPY(reserve.LiquidityRate)
	return &types.Market{
		ID:    marketID,
		Name:  mc.Name,
		Asset: mc.Asset,
		Supply: types.MarketSupply{
			TotalAssets: totalSupply,
			TotalShares: totalSupply,
		},
		APY: types.APYBreakdown{
			Total:  apy,
			Native: apy,
		},
		Metadata: types.MarketMetadata{
			LastUpdateTimestamp: reserve.LastUpdateTimestamp,
		},
	}, nil
}

// OpenPosition builds the supply transactions. ERC-20 deposits approve the
// pool then call supply; native deposits carry value through the gateway and
// need no approval.
func (a *Adapter) OpenPosition(ctx context.Context, amount *big.Int, asset types.Asset, marketID types.MarketID, wallet common.Address) (*types.LendTransaction, error) {
	mc, err := a.marketConfig(marketID)
	if err != nil {
		return nil, err
	}
	market, err := a.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if asset.IsNative() {
		gw, ok := wrappedNativeGateway[marketID.ChainID]
		if !ok {
			return nil, fmt.Errorf("no native gateway on chain %d", marketID.ChainID)
		}
		data, err := gatewayABI.Pack("depositETH", marketID.Address, wallet, uint16(0))
		if err != nil {
			return nil, fmt.Errorf("failed to encode depositETH: %w", err)
		}
		action := types.TransactionData{To: gw.Gateway, Data: data, Value: new(big.Int).Set(amount)}
		return lend.BuildLendTransaction(amount, gw.Wrapped, marketID, market.APY, nil, action, types.LendOpenPosition), nil
	}

	assetAddr, err := a.reserveAsset(mc)
	if err != nil {
		return nil, err
	}
	approval, err := lend.BuildApprovalTx(assetAddr, marketID.Address, amount)
	if err != nil {
		return nil, err
	}
	data, err := poolABI.Pack("supply", assetAddr, amount, wallet, uint16(0))
	if err != nil {
		return nil, fmt.Errorf("failed to encode supply: %w", err)
	}
	action := types.TransactionData{To: marketID.Address, Data: data, Value: new(big.Int)}
	return lend.BuildLendTransaction(amount, assetAddr, marketID, market.APY, &approval, action, types.LendOpenPosition), nil
}

// ClosePosition builds the withdrawal transactions. ERC-20 withdrawals need
// no approval. Native withdrawals approve the wrapped-native receipt token
// to the gateway before withdrawETH: the inverse of the deposit side, a
// protocol quirk the adapter reproduces rather than normalizes.
func (a *Adapter) ClosePosition(ctx context.Context, amount *big.Int, market *types.Market, wallet common.Address) (*types.LendTransaction, error) {
	mc, err := a.marketConfig(market.ID)
	if err != nil {
		return nil, err
	}

	if mc.Asset.IsNative() {
		gw, ok := wrappedNativeGateway[market.ID.ChainID]
		if !ok {
			return nil, fmt.Errorf("no native gateway on chain %d", market.ID.ChainID)
		}
		reserve, err := a.readReserve(ctx, market.ID, gw.Wrapped)
		if err != nil {
			return nil, err
		}
		approval, err := lend.BuildApprovalTx(reserve.ATokenAddress, gw.Gateway, amount)
		if err != nil {
			return nil, err
		}
		data, err := gatewayABI.Pack("withdrawETH", market.ID.Address, amount, wallet)
		if err != nil {
			return nil, fmt.Errorf("failed to encode withdrawETH: %w", err)
		}
		action := types.TransactionData{To: gw.Gateway, Data: data, Value: new(big.Int)}
		return lend.BuildLendTransaction(amount, gw.Wrapped, market.ID, market.APY, &approval, action, types.LendClosePosition), nil
	}

	assetAddr, err := a.reserveAsset(mc)
	if err != nil {
		return nil, err
	}
	data, err := poolABI.Pack("withdraw", assetAddr, amount, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode withdraw: %w", err)
	}
	action := types.TransactionData{To: market.ID.Address, Data: data, Value: new(big.Int)}
	return lend.BuildLendTransaction(amount, assetAddr, market.ID, market.APY, nil, action, types.LendClosePosition), nil
}

// GetPosition reads the wallet's receipt-token balance. Receipt tokens track
// the underlying 1:1, so shares equal balance.
func (a *Adapter) GetPosition(ctx context.Context, wallet common.Address, marketID types.MarketID) (*types.Position, error) {
	mc, err := a.marketConfig(marketID)
	if err != nil {
		return nil, err
	}
	asset, err := a.reserveAsset(mc)
	if err != nil {
		return nil, err
	}
	reserve, err := a.readReserve(ctx, marketID, asset)
	if err != nil {
		return nil, err
	}
	client, err := a.chains.Client(marketID.ChainID)
	if err != nil {
		return nil, err
	}
	data, err := aTokenABI.Pack("balanceOf", wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}
	aToken := reserve.ATokenAddress
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &aToken, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed on %s: %w", aToken.Hex(), err)
	}
	out, err := aTokenABI.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance := out[0].(*big.Int)
	formatted := types.FromBaseUnits(balance, mc.Asset.Decimals)

	return &types.Position{
		Balance:          balance,
		BalanceFormatted: formatted,
		Shares:           new(big.Int).Set(balance),
		SharesFormatted:  formatted,
		MarketID:         marketID,
	}, nil
}
