package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethereum-optimism/actions-sub002/internal/erc4337"
	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/signer"
)

// SmartWalletProvider creates and locates SmartWallet instances over shared
// network access and lending providers.
type SmartWalletProvider struct {
	network           Network
	lendProviders     []*lend.Provider
	attributionSuffix string
}

// NewSmartWalletProvider builds the factory. The attribution suffix, when
// set, is applied to every wallet it creates.
func NewSmartWalletProvider(network Network, lendProviders []*lend.Provider, attributionSuffix string) *SmartWalletProvider {
	return &SmartWalletProvider{
		network:           network,
		lendProviders:     lendProviders,
		attributionSuffix: attributionSuffix,
	}
}

// CreateWalletParams are the inputs to CreateWallet.
type CreateWalletParams struct {
	// Signer authorizes the new wallet's operations.
	Signer signer.Signer

	// Owners is the full owner set; defaults to the signer alone.
	Owners []Owner

	// SignerIndex locates the signer within Owners.
	SignerIndex int

	// Nonce disambiguates accounts sharing an owner set. Defaults to zero.
	Nonce *big.Int

	// DeploymentChainIDs selects the chains to deploy on. Defaults to every
	// configured chain.
	DeploymentChainIDs []uint64
}

// DeploymentResult is the per-chain outcome of a wallet deployment.
type DeploymentResult struct {
	ChainID uint64
	Success bool
	Receipt *erc4337.UserOperationReceipt
	Err     error
}

// CreateWalletResult pairs the wallet with its deployment outcomes. The
// wallet is returned even when some or all deployments failed.
type CreateWalletResult struct {
	Wallet      *SmartWallet
	Deployments []DeploymentResult
}

// CreateWallet constructs a SmartWallet and deploys it on each requested
// chain concurrently and independently: one chain's failure never aborts
// another's, and a partial failure is reported per chain, not thrown.
func (p *SmartWalletProvider) CreateWallet(ctx context.Context, params CreateWalletParams) (*CreateWalletResult, error) {
	w, err := NewSmartWallet(SmartWalletConfig{
		Network:           p.network,
		Signer:            params.Signer,
		Owners:            params.Owners,
		SignerIndex:       params.SignerIndex,
		Nonce:             params.Nonce,
		AttributionSuffix: p.attributionSuffix,
		LendProviders:     p.lendProviders,
	})
	if err != nil {
		return nil, err
	}

	chainIDs := params.DeploymentChainIDs
	if len(chainIDs) == 0 {
		chainIDs = p.network.SupportedChains()
	}

	resultCh := make(chan DeploymentResult, len(chainIDs))
	for _, chainID := range chainIDs {
		go func(chainID uint64) {
			receipt, err := w.Deploy(ctx, chainID)
			if err != nil {
				logrus.Warnf("Wallet deployment failed on chain %d: %v", chainID, err)
				resultCh <- DeploymentResult{ChainID: chainID, Err: err}
				return
			}
			resultCh <- DeploymentResult{ChainID: chainID, Success: true, Receipt: receipt}
		}(chainID)
	}

	deployments := make([]DeploymentResult, 0, len(chainIDs))
	for range chainIDs {
		deployments = append(deployments, <-resultCh)
	}
	return &CreateWalletResult{Wallet: w, Deployments: deployments}, nil
}

// GetWalletAddress predicts the address for (owners, nonce) without
// constructing a wallet. Pure with respect to chain state: identical inputs
// yield the identical address.
func (p *SmartWalletProvider) GetWalletAddress(ctx context.Context, owners []Owner, nonce *big.Int) (common.Address, error) {
	chains := p.network.SupportedChains()
	if len(chains) == 0 {
		return common.Address{}, &ConfigurationError{Msg: "no chains configured for address resolution"}
	}
	caller, err := p.network.Caller(chains[0])
	if err != nil {
		return common.Address{}, err
	}
	return DeriveAddress(ctx, caller, owners, nonce)
}

// GetWalletParams locate an existing wallet by its known address.
type GetWalletParams struct {
	Address     common.Address
	Signer      signer.Signer
	Owners      []Owner
	SignerIndex int
	Nonce       *big.Int
}

// GetWallet wraps an already-deployed account address in a SmartWallet. No
// factory read is performed.
func (p *SmartWalletProvider) GetWallet(params GetWalletParams) (*SmartWallet, error) {
	addr := params.Address
	return NewSmartWallet(SmartWalletConfig{
		Network:           p.network,
		Signer:            params.Signer,
		Owners:            params.Owners,
		SignerIndex:       params.SignerIndex,
		Nonce:             params.Nonce,
		AttributionSuffix: p.attributionSuffix,
		DeploymentAddress: &addr,
		LendProviders:     p.lendProviders,
	})
}
