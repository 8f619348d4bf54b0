package chain

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/ethereum-optimism/actions-sub002/internal/erc4337"
)

// UnsupportedChainError reports a chain ID outside the static registry or
// the manager's configured set. It is always raised before any network call.
type UnsupportedChainError struct {
	ChainID uint64
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("chain %d is not configured", e.ChainID)
}

// Config is the construction-time description of one chain: its ID, the RPC
// endpoint for reads, and optionally an ERC-4337 bundler endpoint. Immutable
// after the manager is built.
type Config struct {
	ChainID    uint64 `yaml:"chain_id" json:"chainId"`
	RPCURL     string `yaml:"rpc_url" json:"rpcUrl"`
	BundlerURL string `yaml:"bundler_url,omitempty" json:"bundlerUrl,omitempty"`
}

type network struct {
	config Config
	chain  Chain
	client *ethclient.Client
}

// Manager owns network access for every configured chain. Read clients are
// shared and read-only after construction; bundler clients are built per
// call because they are bound to a specific account.
type Manager struct {
	networks map[uint64]*network
}

// NewManager validates the configs against the static registry and dials a
// read client per chain. Unknown and duplicate chain IDs fail construction.
func NewManager(configs []Config) (*Manager, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one chain must be configured")
	}
	m := &Manager{networks: make(map[uint64]*network, len(configs))}
	for _, cfg := range configs {
		chain, ok := Lookup(cfg.ChainID)
		if !ok {
			return nil, fmt.Errorf("unknown chain %d: not in the supported chain registry", cfg.ChainID)
		}
		if _, dup := m.networks[cfg.ChainID]; dup {
			return nil, fmt.Errorf("duplicate configuration for chain %d", cfg.ChainID)
		}
		if cfg.RPCURL == "" {
			return nil, fmt.Errorf("chain %d: rpc url is required", cfg.ChainID)
		}
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial rpc for chain %d: %w", cfg.ChainID, err)
		}
		m.networks[cfg.ChainID] = &network{config: cfg, chain: chain, client: client}
		logrus.Debugf("Configured chain %d (%s)", cfg.ChainID, chain.Name)
	}
	return m, nil
}

// Client returns the shared read client for a configured chain.
func (m *Manager) Client(chainID uint64) (*ethclient.Client, error) {
	n, ok := m.networks[chainID]
	if !ok {
		return nil, &UnsupportedChainError{ChainID: chainID}
	}
	return n.client, nil
}

// BundlerClient dials the chain's bundler endpoint and binds it to the given
// account. A fresh client is constructed on every call: an account-bound
// bundler client cannot be reused across accounts.
func (m *Manager) BundlerClient(chainID uint64, account erc4337.Account) (*erc4337.BundlerClient, error) {
	n, ok := m.networks[chainID]
	if !ok {
		return nil, &UnsupportedChainError{ChainID: chainID}
	}
	if n.config.BundlerURL == "" {
		return nil, fmt.Errorf("chain %d has no bundler configured", chainID)
	}
	rpcClient, err := rpc.Dial(n.config.BundlerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bundler for chain %d: %w", chainID, err)
	}
	return erc4337.NewBundlerClient(rpcClient, chainID, account), nil
}

// Chain returns the registry entry for a configured chain.
func (m *Manager) Chain(chainID uint64) (Chain, error) {
	n, ok := m.networks[chainID]
	if !ok {
		return Chain{}, &UnsupportedChainError{ChainID: chainID}
	}
	return n.chain, nil
}

// RPCURL returns the configured RPC endpoint for a chain.
func (m *Manager) RPCURL(chainID uint64) (string, error) {
	n, ok := m.networks[chainID]
	if !ok {
		return "", &UnsupportedChainError{ChainID: chainID}
	}
	return n.config.RPCURL, nil
}

// BundlerURL returns the configured bundler endpoint for a chain, which may
// be empty.
func (m *Manager) BundlerURL(chainID uint64) (string, error) {
	n, ok := m.networks[chainID]
	if !ok {
		return "", &UnsupportedChainError{ChainID: chainID}
	}
	return n.config.BundlerURL, nil
}

// SupportedChains lists the configured chain IDs in ascending order.
func (m *Manager) SupportedChains() []uint64 {
	ids := make([]uint64, 0, len(m.networks))
	for id := range m.networks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsConfigured reports whether a chain is part of this manager's set.
func (m *Manager) IsConfigured(chainID uint64) bool {
	_, ok := m.networks[chainID]
	return ok
}
