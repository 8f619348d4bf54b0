package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// HostedWalletProvider resolves wallets held by an external custody service.
// Hosted wallets can send single transactions but cannot batch.
type HostedWalletProvider interface {
	GetWallet(ctx context.Context, walletID string) (Sender, error)
}

// Namespace is the top-level wallet entry point. It fronts the smart wallet
// factory and, when configured, a hosted wallet provider.
type Namespace struct {
	smart  *SmartWalletProvider
	hosted HostedWalletProvider
}

// NewNamespace builds the namespace. hosted may be nil when no custody
// integration is configured.
func NewNamespace(smart *SmartWalletProvider, hosted HostedWalletProvider) *Namespace {
	return &Namespace{smart: smart, hosted: hosted}
}

// Smart exposes the smart wallet factory.
func (n *Namespace) Smart() *SmartWalletProvider {
	return n.smart
}

// Hosted resolves a hosted wallet by its custody identifier.
func (n *Namespace) Hosted(ctx context.Context, walletID string) (Sender, error) {
	if n.hosted == nil {
		return nil, &ConfigurationError{Msg: "no hosted wallet provider configured"}
	}
	return n.hosted.GetWallet(ctx, walletID)
}

// HostedWallet is a custody-held account. It satisfies Sender but not
// BatchSender, so lending flows that need an approval bundle report
// ErrUnsupportedOperation instead of splitting the bundle.
type HostedWallet struct {
	address common.Address
	send    func(ctx context.Context, tx types.TransactionData, chainID uint64) (common.Hash, error)
}

// NewHostedWallet wraps a custody address and its send callback.
func NewHostedWallet(address common.Address, send func(ctx context.Context, tx types.TransactionData, chainID uint64) (common.Hash, error)) *HostedWallet {
	return &HostedWallet{address: address, send: send}
}

func (h *HostedWallet) Address(ctx context.Context) (common.Address, error) {
	return h.address, nil
}

func (h *HostedWallet) Send(ctx context.Context, tx types.TransactionData, chainID uint64) (common.Hash, error) {
	if h.send == nil {
		return common.Hash{}, fmt.Errorf("hosted wallet %s has no transport: %w", h.address.Hex(), ErrUnsupportedOperation)
	}
	return h.send(ctx, tx, chainID)
}
