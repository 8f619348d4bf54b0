package aave

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

var (
	testPool    = common.HexToAddress("0xA238Dd80C259a72e81d7e4664a9801593F98d1c5")
	testAToken  = common.HexToAddress("0x4e65fE4DbA92790696d040ac24Aa414708F5c0AB")
	testWallet  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	baseGateway = common.HexToAddress("0x8be473dCfA93132658821E67CbEB684ec8Ea2E74")
	baseWETH    = common.HexToAddress("0x4200000000000000000000000000000000000006")
)

// rpcStub answers eth_call by selector so adapter reads run against a local
// endpoint instead of a live node.
type rpcStub struct {
	rate        *big.Int
	timestamp   int64
	totalSupply *big.Int
	balance     *big.Int
}

func (s *rpcStub) handler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Method != "eth_call" {
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"unexpected method %s"}}`, req.ID, req.Method)
		return
	}
	var call map[string]string
	if err := json.Unmarshal(req.Params[0], &call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data := call["input"]
	if data == "" {
		data = call["data"]
	}
	calldata := common.FromHex(data)

	parseABIs()
	var result []byte
	switch {
	case bytes.HasPrefix(calldata, poolABI.Methods["getReserveData"].ID):
		result = reserveReturn(s.rate, s.timestamp, testAToken)
	case bytes.HasPrefix(calldata, aTokenABI.Methods["totalSupply"].ID):
		result = word(s.totalSupply)
	case bytes.HasPrefix(calldata, aTokenABI.Methods["balanceOf"].ID):
		result = word(s.balance)
	default:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":"unexpected selector"}}`, req.ID)
		return
	}
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%s"}`, req.ID, hex.EncodeToString(result))
}

func newTestAdapter(t *testing.T, stub *rpcStub) *Adapter {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	manager, err := chain.NewManager([]chain.Config{{ChainID: chain.BaseID, RPCURL: srv.URL}})
	require.NoError(t, err)

	return NewAdapter(manager, []types.MarketConfig{
		{
			ID:       types.MarketID{Address: testPool, ChainID: chain.BaseID},
			Name:     "USDC Reserve",
			Asset:    types.USDC,
			Protocol: types.ProtocolAave,
		},
		{
			ID:       types.MarketID{Address: testPool, ChainID: chain.EthereumID},
			Name:     "ETH Reserve",
			Asset:    types.ETH,
			Protocol: types.ProtocolAave,
		},
	})
}

func defaultStub() *rpcStub {
	return &rpcStub{
		// 5% APR in RAY.
		rate:        new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(25), nil)),
		timestamp:   1_700_000_000,
		totalSupply: big.NewInt(9_000_000_000),
		balance:     big.NewInt(250_000_000),
	}
}

func TestGetMarket(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	marketID := types.MarketID{Address: testPool, ChainID: chain.BaseID}

	market, err := adapter.GetMarket(context.Background(), marketID)
	require.NoError(t, err)

	assert.Equal(t, marketID, market.ID)
	assert.Equal(t, "USDC Reserve", market.Name)
	assert.Equal(t, "USDC", market.Asset.Symbol)
	assert.Equal(t, big.NewInt(9_000_000_000), market.Supply.TotalAssets)
	assert.Equal(t, market.Supply.TotalAssets, market.Supply.TotalShares, "receipt tokens track deposits 1:1")
	assert.InDelta(t, 0.051271, market.APY.Total, 1e-5)
	assert.Equal(t, market.APY.Total, market.APY.Native, "pool yield has no reward component")
	assert.Equal(t, int64(1_700_000_000), market.Metadata.LastUpdateTimestamp)
}

func TestGetMarketUnknownReserve(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	_, err := adapter.GetMarket(context.Background(), types.MarketID{
		Address: common.HexToAddress("0x99"),
		ChainID: chain.BaseID,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reserve configured")
}

func TestOpenPositionERC20(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	marketID := types.MarketID{Address: testPool, ChainID: chain.BaseID}
	amount := big.NewInt(1_000_000_000)

	tx, err := adapter.OpenPosition(context.Background(), amount, types.USDC, marketID, testWallet)
	require.NoError(t, err)

	usdcBase, ok := types.USDC.AddressOn(chain.BaseID)
	require.True(t, ok)

	require.NotNil(t, tx.Transactions.Approval, "ERC-20 deposits approve the pool first")
	assert.Equal(t, usdcBase, tx.Transactions.Approval.To)

	action := tx.Transactions.Action
	assert.Equal(t, testPool, action.To)
	assert.Zero(t, action.Value.Sign())

	method, err := poolABI.MethodById(action.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "supply", method.Name)
	args, err := method.Inputs.Unpack(action.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, usdcBase, args[0].(common.Address))
	assert.Equal(t, amount, args[1].(*big.Int))
	assert.Equal(t, testWallet, args[2].(common.Address))
	assert.Equal(t, uint16(0), args[3].(uint16))

	assert.Equal(t, types.LendOpenPosition, tx.Transactions.Kind)
	assert.Equal(t, usdcBase, tx.AssetAddress)
}

func TestOpenPositionNative(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	marketID := types.MarketID{Address: testPool, ChainID: chain.BaseID}
	amount := big.NewInt(500_000_000_000_000_000)

	tx, err := adapter.OpenPosition(context.Background(), amount, types.ETH, marketID, testWallet)
	require.NoError(t, err)

	assert.Nil(t, tx.Transactions.Approval, "native deposits carry value instead of approving")

	action := tx.Transactions.Action
	assert.Equal(t, baseGateway, action.To)
	assert.Equal(t, amount, action.Value, "deposit value rides on the gateway call")

	method, err := gatewayABI.MethodById(action.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "depositETH", method.Name)
	args, err := method.Inputs.Unpack(action.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testPool, args[0].(common.Address))
	assert.Equal(t, testWallet, args[1].(common.Address))

	assert.Equal(t, baseWETH, tx.AssetAddress, "the pool holds the wrapped token")
}

func TestClosePositionERC20(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	marketID := types.MarketID{Address: testPool, ChainID: chain.BaseID}
	amount := big.NewInt(400_000_000)
	market := &types.Market{ID: marketID, Asset: types.USDC, APY: types.APYBreakdown{Total: 0.05}}

	tx, err := adapter.ClosePosition(context.Background(), amount, market, testWallet)
	require.NoError(t, err)

	assert.Nil(t, tx.Transactions.Approval, "ERC-20 withdrawals need no approval")
	assert.Equal(t, types.LendClosePosition, tx.Transactions.Kind)

	action := tx.Transactions.Action
	assert.Equal(t, testPool, action.To)
	assert.Zero(t, action.Value.Sign())

	method, err := poolABI.MethodById(action.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "withdraw", method.Name)
	args, err := method.Inputs.Unpack(action.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, amount, args[1].(*big.Int))
	assert.Equal(t, testWallet, args[2].(common.Address))
}

func TestClosePositionNativeApprovesReceiptToken(t *testing.T) {
	stub := defaultStub()
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	t.Cleanup(srv.Close)

	// The native reserve lives on a chain with a configured gateway.
	manager, err := chain.NewManager([]chain.Config{{ChainID: chain.BaseID, RPCURL: srv.URL}})
	require.NoError(t, err)
	marketID := types.MarketID{Address: testPool, ChainID: chain.BaseID}
	adapter := NewAdapter(manager, []types.MarketConfig{
		{ID: marketID, Name: "ETH Reserve", Asset: types.ETH, Protocol: types.ProtocolAave},
	})

	amount := big.NewInt(100_000_000_000_000_000)
	market := &types.Market{ID: marketID, Asset: types.ETH}

	tx, err := adapter.ClosePosition(context.Background(), amount, market, testWallet)
	require.NoError(t, err)

	require.NotNil(t, tx.Transactions.Approval, "native withdrawals approve the receipt token to the gateway")
	assert.Equal(t, testAToken, tx.Transactions.Approval.To)

	action := tx.Transactions.Action
	assert.Equal(t, baseGateway, action.To)
	assert.Zero(t, action.Value.Sign())

	method, err := gatewayABI.MethodById(action.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "withdrawETH", method.Name)
	args, err := method.Inputs.Unpack(action.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testPool, args[0].(common.Address))
	assert.Equal(t, amount, args[1].(*big.Int))
	assert.Equal(t, testWallet, args[2].(common.Address))
}

func TestGetPosition(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	marketID := types.MarketID{Address: testPool, ChainID: chain.BaseID}

	position, err := adapter.GetPosition(context.Background(), testWallet, marketID)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(250_000_000), position.Balance)
	assert.Equal(t, position.Balance, position.Shares)
	assert.Equal(t, "250", position.BalanceFormatted.String())
	assert.Equal(t, marketID, position.MarketID)
}

func TestProtocolAndChains(t *testing.T) {
	adapter := newTestAdapter(t, defaultStub())
	assert.Equal(t, types.ProtocolAave, adapter.Protocol())
	assert.Contains(t, adapter.SupportedChainIDs(), chain.BaseID)
	assert.NotContains(t, adapter.SupportedChainIDs(), chain.BaseSepoliaID)
}
