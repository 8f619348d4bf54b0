package wallet

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/erc4337"
)

// Bundler is the per-account bundler surface the wallet drives.
// *erc4337.BundlerClient satisfies it; tests substitute fakes.
type Bundler interface {
	PrepareUserOperation(ctx context.Context, caller erc4337.ContractCaller, callData, initCode []byte) (*erc4337.UserOperation, error)
	SignUserOperation(ctx context.Context, op *erc4337.UserOperation) error
	SendUserOperation(ctx context.Context, op *erc4337.UserOperation) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*erc4337.UserOperationReceipt, error)
}

// Network is the chain access a wallet needs: read clients, account-bound
// bundler clients and the configured chain set.
type Network interface {
	Caller(chainID uint64) (erc4337.ContractCaller, error)
	Bundler(chainID uint64, account erc4337.Account) (Bundler, error)
	SupportedChains() []uint64
}

type managerNetwork struct {
	m *chain.Manager
}

// NetworkFromManager adapts a chain.Manager to the wallet's Network surface.
func NetworkFromManager(m *chain.Manager) Network {
	return managerNetwork{m: m}
}

func (n managerNetwork) Caller(chainID uint64) (erc4337.ContractCaller, error) {
	client, err := n.m.Client(chainID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (n managerNetwork) Bundler(chainID uint64, account erc4337.Account) (Bundler, error) {
	client, err := n.m.BundlerClient(chainID, account)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (n managerNetwork) SupportedChains() []uint64 {
	return n.m.SupportedChains()
}
