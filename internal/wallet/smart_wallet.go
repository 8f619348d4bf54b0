package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ethereum-optimism/actions-sub002/internal/erc4337"
	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/signer"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// attributionSuffixLen is the required length of the attribution tag in
// bytes. The tag marks the originating integration without affecting
// execution semantics.
const attributionSuffixLen = 16

// SmartWalletConfig is the construction input for a SmartWallet.
type SmartWalletConfig struct {
	// Network provides chain access; NetworkFromManager adapts the chain
	// manager.
	Network Network

	// Signer authorizes this wallet's UserOperations.
	Signer signer.Signer

	// Owners is the account's owner set. Defaults to the signer's address
	// as the sole owner.
	Owners []Owner

	// SignerIndex locates the signer within Owners.
	SignerIndex int

	// Nonce disambiguates multiple accounts with the same owners. Defaults
	// to zero.
	Nonce *big.Int

	// AttributionSuffix is an optional hex-encoded 16-byte tag appended to
	// every operation's calldata.
	AttributionSuffix string

	// DeploymentAddress, when set, is the account's known address; no
	// factory read is performed.
	DeploymentAddress *common.Address

	// LendProviders are the lending providers available through the
	// wallet's lend namespace. Shared, stateless collaborators.
	LendProviders []*lend.Provider
}

// SmartWallet is an ERC-4337 smart account. The address is resolved at most
// once per instance; deployment state is tracked independently per chain.
type SmartWallet struct {
	network       Network
	signer        signer.Signer
	owners        []Owner
	signerIndex   int
	nonce         *big.Int
	suffix        []byte
	lendProviders []*lend.Provider

	// Address resolution happens exactly once even under concurrent first
	// callers; failures clear the flight so a later call can retry.
	resolve  singleflight.Group
	mu       sync.RWMutex
	address  common.Address
	resolved bool
}

func (w *SmartWallet) cachedAddress() (common.Address, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address, w.resolved
}

func (w *SmartWallet) storeAddress(addr common.Address) {
	w.mu.Lock()
	w.address = addr
	w.resolved = true
	w.mu.Unlock()
}

// NewSmartWallet validates the configuration and builds an unresolved
// wallet. Malformed attribution suffixes and owner sets fail here, before
// any network call.
func NewSmartWallet(cfg SmartWalletConfig) (*SmartWallet, error) {
	if cfg.Network == nil {
		return nil, &ConfigurationError{Msg: "network access is required"}
	}
	if cfg.Signer == nil {
		return nil, &ConfigurationError{Msg: "a signer is required"}
	}
	owners := cfg.Owners
	if len(owners) == 0 {
		owners = []Owner{AddressOwner(cfg.Signer.Address())}
	}
	if err := ValidateOwners(owners, cfg.SignerIndex); err != nil {
		return nil, &ConfigurationError{Msg: err.Error()}
	}
	var suffix []byte
	if cfg.AttributionSuffix != "" {
		decoded, err := hexutil.Decode(cfg.AttributionSuffix)
		if err != nil {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("attribution suffix is not valid hex: %v", err)}
		}
		if len(decoded) != attributionSuffixLen {
			return nil, &ConfigurationError{Msg: fmt.Sprintf("attribution suffix must be %d bytes, got %d", attributionSuffixLen, len(decoded))}
		}
		suffix = decoded
	}
	nonce := cfg.Nonce
	if nonce == nil {
		nonce = new(big.Int)
	}
	w := &SmartWallet{
		network:       cfg.Network,
		signer:        cfg.Signer,
		owners:        owners,
		signerIndex:   cfg.SignerIndex,
		nonce:         nonce,
		suffix:        suffix,
		lendProviders: cfg.LendProviders,
	}
	if cfg.DeploymentAddress != nil {
		w.address = *cfg.DeploymentAddress
		w.resolved = true
	}
	return w, nil
}

// Signer returns the wallet's signer.
func (w *SmartWallet) Signer() signer.Signer {
	return w.signer
}

// Owners returns the wallet's owner set.
func (w *SmartWallet) Owners() []Owner {
	out := make([]Owner, len(w.owners))
	copy(out, w.owners)
	return out
}

// Address resolves the wallet address. An explicitly supplied deployment
// address is returned verbatim; otherwise the factory's prediction function
// is read once against one configured chain and the result is cached for
// the wallet's lifetime.
func (w *SmartWallet) Address(ctx context.Context) (common.Address, error) {
	if addr, ok := w.cachedAddress(); ok {
		return addr, nil
	}
	result, err, _ := w.resolve.Do("address", func() (any, error) {
		if addr, ok := w.cachedAddress(); ok {
			return addr, nil
		}
		chains := w.network.SupportedChains()
		if len(chains) == 0 {
			return common.Address{}, &ConfigurationError{Msg: "no chains configured for address resolution"}
		}
		caller, err := w.network.Caller(chains[0])
		if err != nil {
			return common.Address{}, err
		}
		addr, err := DeriveAddress(ctx, caller, w.owners, w.nonce)
		if err != nil {
			return common.Address{}, err
		}
		w.storeAddress(addr)
		logrus.Debugf("Resolved smart wallet address %s", addr.Hex())
		return addr, nil
	})
	if err != nil {
		return common.Address{}, err
	}
	return result.(common.Address), nil
}

// isDeployed checks for account code at the wallet address on a chain.
func (w *SmartWallet) isDeployed(ctx context.Context, chainID uint64, addr common.Address) (bool, error) {
	caller, err := w.network.Caller(chainID)
	if err != nil {
		return false, err
	}
	codeReader, ok := caller.(interface {
		CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	})
	if !ok {
		return false, nil
	}
	code, err := codeReader.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("failed to check deployment on chain %d: %w", chainID, err)
	}
	return len(code) > 0, nil
}

// submit runs the full send pipeline on one chain: prepare with sponsorship,
// apply the attribution suffix, sign, submit, and block until the receipt is
// available. When the account has no code on the chain yet, the operation
// carries the factory initCode so the first send deploys it. Any failure
// surfaces as a SendError; there is no partial success.
func (w *SmartWallet) submit(ctx context.Context, chainID uint64, callData []byte) (common.Hash, *erc4337.UserOperationReceipt, error) {
	addr, err := w.Address(ctx)
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}
	caller, err := w.network.Caller(chainID)
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}
	deployed, err := w.isDeployed(ctx, chainID, addr)
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}
	var initCode []byte
	if !deployed {
		initCode, err = BuildInitCode(w.owners, w.nonce)
		if err != nil {
			return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
		}
	}
	bundler, err := w.network.Bundler(chainID, erc4337.Account{Sender: addr, Signer: w.signer})
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}

	op, err := bundler.PrepareUserOperation(ctx, caller, callData, initCode)
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}

	// The attribution suffix tags callData always, and initCode only when
	// present: a deployed wallet has no initCode to tag.
	if len(w.suffix) > 0 {
		op.CallData = append(op.CallData, w.suffix...)
		if len(op.InitCode) > 0 {
			op.InitCode = append(op.InitCode, w.suffix...)
		}
	}

	if err := bundler.SignUserOperation(ctx, op); err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}
	hash, err := bundler.SendUserOperation(ctx, op)
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}
	receipt, err := bundler.WaitForReceipt(ctx, hash)
	if err != nil {
		return common.Hash{}, nil, &SendError{ChainID: chainID, Cause: err}
	}
	return hash, receipt, nil
}

// Send submits a single transaction as a sponsored UserOperation and blocks
// until it is included.
func (w *SmartWallet) Send(ctx context.Context, tx types.TransactionData, chainID uint64) (common.Hash, error) {
	callData, err := EncodeExecute(tx)
	if err != nil {
		return common.Hash{}, &SendError{ChainID: chainID, Cause: err}
	}
	hash, _, err := w.submit(ctx, chainID, callData)
	return hash, err
}

// SendBatch submits multiple transactions as one atomic UserOperation. The
// calls execute strictly in order; approval transactions therefore always
// precede the action they authorize.
func (w *SmartWallet) SendBatch(ctx context.Context, txs []types.TransactionData, chainID uint64) (common.Hash, error) {
	if len(txs) == 0 {
		return common.Hash{}, &SendError{ChainID: chainID, Cause: fmt.Errorf("empty batch")}
	}
	callData, err := EncodeExecuteBatch(txs)
	if err != nil {
		return common.Hash{}, &SendError{ChainID: chainID, Cause: err}
	}
	hash, _, err := w.submit(ctx, chainID, callData)
	return hash, err
}

// Deploy deploys the account on one chain by submitting an empty sponsored
// operation; submit attaches the factory initCode when the account is not yet
// on chain. Deployments on different chains are independent; a wallet already
// deployed on the chain deploys as a no-op without initCode.
func (w *SmartWallet) Deploy(ctx context.Context, chainID uint64) (*erc4337.UserOperationReceipt, error) {
	addr, err := w.Address(ctx)
	if err != nil {
		return nil, &SendError{ChainID: chainID, Cause: err}
	}
	callData, err := EncodeExecuteBatch(nil)
	if err != nil {
		return nil, &SendError{ChainID: chainID, Cause: err}
	}
	_, receipt, err := w.submit(ctx, chainID, callData)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Deployed smart wallet %s on chain %d", addr.Hex(), chainID)
	return receipt, nil
}

// Lend returns the lending sub-namespace bound to this wallet and the
// provider for the given protocol.
func (w *SmartWallet) Lend(protocol types.Protocol) (*LendNamespace, error) {
	for _, p := range w.lendProviders {
		if p.Protocol() == protocol {
			return &LendNamespace{provider: p, wallet: w}, nil
		}
	}
	return nil, &ConfigurationError{Msg: fmt.Sprintf("no lending provider configured for protocol %s", protocol)}
}
