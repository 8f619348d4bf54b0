package wallet

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// BuildTokenTransfer constructs a transfer of the given asset: a plain
// native-value transaction or an ERC-20 transfer call, chosen by the asset's
// kind. Pure construction, no I/O; non-positive amounts are rejected before
// any encoding.
func BuildTokenTransfer(asset types.Asset, amount decimal.Decimal, to common.Address, chainID uint64) (types.TransactionData, error) {
	base, err := types.ToBaseUnits(amount, asset.Decimals)
	if err != nil {
		return types.TransactionData{}, err
	}
	if asset.IsNative() {
		return types.TransactionData{To: to, Data: []byte{}, Value: base}, nil
	}
	tokenAddr, ok := asset.AddressOn(chainID)
	if !ok {
		return types.TransactionData{}, fmt.Errorf("asset %s has no address on chain %d", asset.Symbol, chainID)
	}
	data, err := lend.ERC20ABI().Pack("transfer", to, base)
	if err != nil {
		return types.TransactionData{}, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return types.TransactionData{To: tokenAddr, Data: data, Value: new(big.Int)}, nil
}

// SendTokens builds and submits a token transfer from this wallet.
func (w *SmartWallet) SendTokens(ctx context.Context, asset types.Asset, amount decimal.Decimal, to common.Address, chainID uint64) (common.Hash, error) {
	tx, err := BuildTokenTransfer(asset, amount, to, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	return w.Send(ctx, tx, chainID)
}
