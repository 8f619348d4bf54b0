package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

func TestBuildTokenTransferNative(t *testing.T) {
	to := common.HexToAddress("0x02")

	tx, err := BuildTokenTransfer(types.ETH, decimal.RequireFromString("0.5"), to, chain.BaseID)
	require.NoError(t, err)

	assert.Equal(t, to, tx.To)
	assert.Empty(t, tx.Data)
	assert.Equal(t, "500000000000000000", tx.Value.String())
}

func TestBuildTokenTransferERC20(t *testing.T) {
	to := common.HexToAddress("0x02")

	tx, err := BuildTokenTransfer(types.USDC, decimal.NewFromInt(1000), to, chain.BaseID)
	require.NoError(t, err)

	usdcBase, ok := types.USDC.AddressOn(chain.BaseID)
	require.True(t, ok)
	assert.Equal(t, usdcBase, tx.To)
	assert.Zero(t, tx.Value.Sign())

	method, err := lend.ERC20ABI().MethodById(tx.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "transfer", method.Name)
	args, err := method.Inputs.Unpack(tx.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, to, args[0].(common.Address))
	assert.Equal(t, big.NewInt(1_000_000_000), args[1].(*big.Int))
}

func TestBuildTokenTransferRejectsBadInput(t *testing.T) {
	to := common.HexToAddress("0x02")

	_, err := BuildTokenTransfer(types.USDC, decimal.NewFromInt(-1), to, chain.BaseID)
	assert.Error(t, err, "negative amounts never reach encoding")

	_, err = BuildTokenTransfer(types.WETH, decimal.NewFromInt(1), to, chain.BaseSepoliaID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no address on chain")
}

func TestSendTokens(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	hash, err := w.SendTokens(context.Background(), types.USDC, decimal.NewFromInt(10), common.HexToAddress("0x02"), chain.BaseID)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
	require.NotEmpty(t, network.bundlers[chain.BaseID].sent)
}
