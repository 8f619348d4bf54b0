package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// Sender is the wallet surface a lend namespace drives: single sends plus
// address resolution.
type Sender interface {
	Address(ctx context.Context) (common.Address, error)
	Send(ctx context.Context, tx types.TransactionData, chainID uint64) (common.Hash, error)
}

// BatchSender additionally supports atomic multi-call execution. Smart
// wallets batch; hosted key-controlled wallets do not.
type BatchSender interface {
	Sender
	SendBatch(ctx context.Context, txs []types.TransactionData, chainID uint64) (common.Hash, error)
}

// LendNamespace binds one lending provider to one wallet. Position
// operations resolve the wallet address, delegate transaction synthesis to
// the provider and submit the result through the wallet.
type LendNamespace struct {
	provider *lend.Provider
	wallet   Sender
}

// NewLendNamespace binds a provider to a wallet.
func NewLendNamespace(provider *lend.Provider, wallet Sender) *LendNamespace {
	return &LendNamespace{provider: provider, wallet: wallet}
}

// OpenPosition synthesizes and submits an open-position bundle. A bundle
// with an approval is submitted as exactly one atomic batch, never as two
// independently failable sends.
func (n *LendNamespace) OpenPosition(ctx context.Context, params lend.OpenPositionParams) (common.Hash, *types.LendTransaction, error) {
	addr, err := n.wallet.Address(ctx)
	if err != nil {
		return common.Hash{}, nil, err
	}
	params.WalletAddress = addr
	lendTx, err := n.provider.OpenPosition(ctx, params)
	if err != nil {
		return common.Hash{}, nil, err
	}
	hash, err := n.submitBundle(ctx, lendTx)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return hash, lendTx, nil
}

// ClosePosition synthesizes and submits a close-position bundle. Closing is
// only available on batching wallet types: close bundles can require a
// receipt-token approval, and splitting them is unsafe.
func (n *LendNamespace) ClosePosition(ctx context.Context, params lend.ClosePositionParams) (common.Hash, *types.LendTransaction, error) {
	if _, ok := n.wallet.(BatchSender); !ok {
		return common.Hash{}, nil, ErrUnsupportedOperation
	}
	addr, err := n.wallet.Address(ctx)
	if err != nil {
		return common.Hash{}, nil, err
	}
	params.WalletAddress = addr
	lendTx, err := n.provider.ClosePosition(ctx, params)
	if err != nil {
		return common.Hash{}, nil, err
	}
	hash, err := n.submitBundle(ctx, lendTx)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return hash, lendTx, nil
}

func (n *LendNamespace) submitBundle(ctx context.Context, lendTx *types.LendTransaction) (common.Hash, error) {
	chainID := lendTx.MarketID.ChainID
	bundle := lendTx.Transactions
	if bundle.Approval == nil {
		return n.wallet.Send(ctx, bundle.Action, chainID)
	}
	batcher, ok := n.wallet.(BatchSender)
	if !ok {
		return common.Hash{}, ErrUnsupportedOperation
	}
	return batcher.SendBatch(ctx, []types.TransactionData{*bundle.Approval, bundle.Action}, chainID)
}

// GetPosition reads the bound wallet's position in one market.
func (n *LendNamespace) GetPosition(ctx context.Context, marketID types.MarketID) (*types.Position, error) {
	addr, err := n.wallet.Address(ctx)
	if err != nil {
		return nil, err
	}
	return n.provider.GetPosition(ctx, addr, &marketID)
}

// GetMarket reads one market through the bound provider.
func (n *LendNamespace) GetMarket(ctx context.Context, marketID types.MarketID) (*types.Market, error) {
	return n.provider.GetMarket(ctx, marketID)
}

// GetMarkets lists the bound provider's allowed markets.
func (n *LendNamespace) GetMarkets(ctx context.Context, filter lend.MarketFilter) ([]types.Market, error) {
	return n.provider.GetMarkets(ctx, filter)
}
