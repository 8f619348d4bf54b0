package wallet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/erc4337"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

const testSuffix = "0x00112233445566778899aabbccddeeff"

var suffixBytes = common.FromHex(testSuffix)

type fakeSigner struct {
	addr common.Address
}

func (s fakeSigner) Address() common.Address { return s.addr }

func (s fakeSigner) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

// fakeCaller serves factory address predictions and deployment-code checks.
type fakeCaller struct {
	mu      sync.Mutex
	calls   int
	derived common.Address
	code    []byte
	callErr error
}

func (c *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.callErr != nil {
		return nil, c.callErr
	}
	return common.LeftPadBytes(c.derived.Bytes(), 32), nil
}

func (c *fakeCaller) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.code, nil
}

func (c *fakeCaller) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// fakeBundler records the pipeline stages and passes calldata through.
type fakeBundler struct {
	mu         sync.Mutex
	prepared   []*erc4337.UserOperation
	signed     int
	sent       []*erc4337.UserOperation
	prepareErr error
	sendErr    error
}

func (b *fakeBundler) PrepareUserOperation(ctx context.Context, caller erc4337.ContractCaller, callData, initCode []byte) (*erc4337.UserOperation, error) {
	if b.prepareErr != nil {
		return nil, b.prepareErr
	}
	op := &erc4337.UserOperation{
		CallData: append([]byte(nil), callData...),
		InitCode: append([]byte(nil), initCode...),
	}
	b.mu.Lock()
	b.prepared = append(b.prepared, op)
	b.mu.Unlock()
	return op, nil
}

func (b *fakeBundler) SignUserOperation(ctx context.Context, op *erc4337.UserOperation) error {
	b.mu.Lock()
	b.signed++
	b.mu.Unlock()
	op.Signature = []byte{0x01}
	return nil
}

func (b *fakeBundler) SendUserOperation(ctx context.Context, op *erc4337.UserOperation) (common.Hash, error) {
	if b.sendErr != nil {
		return common.Hash{}, b.sendErr
	}
	b.mu.Lock()
	b.sent = append(b.sent, op)
	b.mu.Unlock()
	return common.HexToHash("0x0101"), nil
}

func (b *fakeBundler) WaitForReceipt(ctx context.Context, hash common.Hash) (*erc4337.UserOperationReceipt, error) {
	return &erc4337.UserOperationReceipt{UserOpHash: hash, Success: true}, nil
}

func (b *fakeBundler) lastSent(t *testing.T) *erc4337.UserOperation {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.sent)
	return b.sent[len(b.sent)-1]
}

// fakeNetwork wires fakes per chain.
type fakeNetwork struct {
	callers     map[uint64]*fakeCaller
	bundlers    map[uint64]*fakeBundler
	bundlerErrs map[uint64]error
	chains      []uint64
}

func (n *fakeNetwork) Caller(chainID uint64) (erc4337.ContractCaller, error) {
	c, ok := n.callers[chainID]
	if !ok {
		return nil, &chain.UnsupportedChainError{ChainID: chainID}
	}
	return c, nil
}

func (n *fakeNetwork) Bundler(chainID uint64, account erc4337.Account) (Bundler, error) {
	if err, ok := n.bundlerErrs[chainID]; ok {
		return nil, err
	}
	b, ok := n.bundlers[chainID]
	if !ok {
		return nil, &chain.UnsupportedChainError{ChainID: chainID}
	}
	return b, nil
}

func (n *fakeNetwork) SupportedChains() []uint64 { return n.chains }

func newFakeNetwork(derived common.Address, chainIDs ...uint64) *fakeNetwork {
	n := &fakeNetwork{
		callers:     make(map[uint64]*fakeCaller),
		bundlers:    make(map[uint64]*fakeBundler),
		bundlerErrs: make(map[uint64]error),
		chains:      chainIDs,
	}
	for _, id := range chainIDs {
		n.callers[id] = &fakeCaller{derived: derived}
		n.bundlers[id] = &fakeBundler{}
	}
	return n
}

var walletAddr = common.HexToAddress("0x4e65fE4DbA92790696d040ac24Aa414708F5c0AB")

func newTestWallet(t *testing.T, network Network, suffix string) *SmartWallet {
	t.Helper()
	w, err := NewSmartWallet(SmartWalletConfig{
		Network:           network,
		Signer:            fakeSigner{addr: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")},
		AttributionSuffix: suffix,
	})
	require.NoError(t, err)
	return w
}

func TestNewSmartWalletValidation(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	signer := fakeSigner{addr: common.HexToAddress("0x01")}

	tests := []struct {
		name    string
		cfg     SmartWalletConfig
		wantErr string
	}{
		{
			name:    "missing network",
			cfg:     SmartWalletConfig{Signer: signer},
			wantErr: "network access is required",
		},
		{
			name:    "missing signer",
			cfg:     SmartWalletConfig{Network: network},
			wantErr: "a signer is required",
		},
		{
			name:    "signer index out of range",
			cfg:     SmartWalletConfig{Network: network, Signer: signer, SignerIndex: 3},
			wantErr: "out of range",
		},
		{
			name:    "suffix not hex",
			cfg:     SmartWalletConfig{Network: network, Signer: signer, AttributionSuffix: "nope"},
			wantErr: "not valid hex",
		},
		{
			name:    "suffix wrong length",
			cfg:     SmartWalletConfig{Network: network, Signer: signer, AttributionSuffix: "0x0011"},
			wantErr: "must be 16 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSmartWallet(tt.cfg)
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Msg, tt.wantErr)
		})
	}
}

func TestNewSmartWalletDefaultsOwnerToSigner(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	signer := fakeSigner{addr: common.HexToAddress("0x0123")}

	w := func() *SmartWallet {
		w, err := NewSmartWallet(SmartWalletConfig{Network: network, Signer: signer})
		require.NoError(t, err)
		return w
	}()

	owners := w.Owners()
	require.Len(t, owners, 1)
	assert.Equal(t, AddressOwner(signer.addr), owners[0])
}

func TestAddressResolvesOnceAndCaches(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	first, err := w.Address(context.Background())
	require.NoError(t, err)
	second, err := w.Address(context.Background())
	require.NoError(t, err)

	assert.Equal(t, walletAddr, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, network.callers[chain.BaseID].callCount(), "resolution runs exactly once")
}

func TestAddressKnownUpfront(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	known := common.HexToAddress("0xBEEF")

	w, err := NewSmartWallet(SmartWalletConfig{
		Network:           network,
		Signer:            fakeSigner{addr: common.HexToAddress("0x01")},
		DeploymentAddress: &known,
	})
	require.NoError(t, err)

	got, err := w.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, known, got)
	assert.Zero(t, network.callers[chain.BaseID].callCount(), "a known address needs no factory read")
}

func TestAddressResolutionFailureRetries(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	caller := network.callers[chain.BaseID]
	caller.callErr = fmt.Errorf("rpc down")
	w := newTestWallet(t, network, "")

	_, err := w.Address(context.Background())
	require.Error(t, err)

	caller.mu.Lock()
	caller.callErr = nil
	caller.mu.Unlock()

	got, err := w.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, walletAddr, got)
}

func TestSendTagsCallDataOnly(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	network.callers[chain.BaseID].code = []byte{0x60, 0x80}
	w := newTestWallet(t, network, testSuffix)

	tx := types.TransactionData{To: common.HexToAddress("0x02"), Data: []byte{0xde, 0xad}}
	hash, err := w.Send(context.Background(), tx, chain.BaseID)
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)

	op := network.bundlers[chain.BaseID].lastSent(t)

	want, err := EncodeExecute(tx)
	require.NoError(t, err)
	assert.Equal(t, append(want, suffixBytes...), []byte(op.CallData))
	assert.Empty(t, op.InitCode, "a deployed wallet's send carries no initCode and nothing to tag")
}

func TestSendFromUndeployedWalletCarriesInitCode(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, testSuffix)

	tx := types.TransactionData{To: common.HexToAddress("0x02"), Data: []byte{0xde, 0xad}}
	_, err := w.Send(context.Background(), tx, chain.BaseID)
	require.NoError(t, err)

	op := network.bundlers[chain.BaseID].lastSent(t)
	require.NotEmpty(t, op.InitCode, "an undeployed wallet's first send must deploy the account")
	assert.Equal(t, FactoryAddress.Bytes(), []byte(op.InitCode[:20]))
	assert.True(t, bytes.HasSuffix(op.InitCode, suffixBytes), "present initCode carries the tag")
	assert.True(t, bytes.HasSuffix(op.CallData, suffixBytes))
}

func TestSendBatchFromUndeployedWalletCarriesInitCode(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	txs := []types.TransactionData{{To: common.HexToAddress("0x0A")}}
	_, err := w.SendBatch(context.Background(), txs, chain.BaseID)
	require.NoError(t, err)

	op := network.bundlers[chain.BaseID].lastSent(t)
	require.NotEmpty(t, op.InitCode)
	assert.Equal(t, FactoryAddress.Bytes(), []byte(op.InitCode[:20]))
}

func TestSendWithoutSuffix(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	tx := types.TransactionData{To: common.HexToAddress("0x02")}
	_, err := w.Send(context.Background(), tx, chain.BaseID)
	require.NoError(t, err)

	op := network.bundlers[chain.BaseID].lastSent(t)
	want, err := EncodeExecute(tx)
	require.NoError(t, err)
	assert.Equal(t, want, []byte(op.CallData))
}

func TestSendBatchAtomicOrder(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	txs := []types.TransactionData{
		{To: common.HexToAddress("0x0A"), Data: []byte{0x01}},
		{To: common.HexToAddress("0x0B"), Data: []byte{0x02}},
	}
	_, err := w.SendBatch(context.Background(), txs, chain.BaseID)
	require.NoError(t, err)

	op := network.bundlers[chain.BaseID].lastSent(t)
	want, err := EncodeExecuteBatch(txs)
	require.NoError(t, err)
	assert.Equal(t, want, []byte(op.CallData))
}

func TestSendBatchRejectsEmpty(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	_, err := w.SendBatch(context.Background(), nil, chain.BaseID)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, chain.BaseID, sendErr.ChainID)
}

func TestSendBundlerFailure(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	cause := errors.New("bundler rejected op")
	network.bundlers[chain.BaseID].sendErr = cause
	w := newTestWallet(t, network, "")

	_, err := w.Send(context.Background(), types.TransactionData{To: common.HexToAddress("0x02")}, chain.BaseID)
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, chain.BaseID, sendErr.ChainID)
	assert.ErrorIs(t, err, cause)
}

func TestDeployUndeployedCarriesTaggedInitCode(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, testSuffix)

	receipt, err := w.Deploy(context.Background(), chain.BaseID)
	require.NoError(t, err)
	assert.True(t, receipt.Success)

	op := network.bundlers[chain.BaseID].lastSent(t)
	require.NotEmpty(t, op.InitCode)
	assert.Equal(t, FactoryAddress.Bytes(), []byte(op.InitCode[:20]))
	assert.True(t, bytes.HasSuffix(op.InitCode, suffixBytes), "deployment initCode carries the tag")
	assert.True(t, bytes.HasSuffix(op.CallData, suffixBytes))
}

func TestDeployNoopWhenAlreadyDeployed(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	network.callers[chain.BaseID].code = []byte{0x60, 0x80}
	w := newTestWallet(t, network, testSuffix)

	_, err := w.Deploy(context.Background(), chain.BaseID)
	require.NoError(t, err)

	op := network.bundlers[chain.BaseID].lastSent(t)
	assert.Empty(t, op.InitCode, "a deployed account redeploys without initCode")
}

func TestLendUnknownProtocol(t *testing.T) {
	network := newFakeNetwork(walletAddr, chain.BaseID)
	w := newTestWallet(t, network, "")

	_, err := w.Lend(types.ProtocolMorpho)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Msg, "no lending provider")
}
