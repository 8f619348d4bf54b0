package erc4337

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// receiptPollInterval is how often an in-flight operation is checked for
// inclusion while waiting for its receipt.
const receiptPollInterval = 2 * time.Second

// BundlerClient talks ERC-4337 JSON-RPC to one chain's bundler on behalf of
// one account. Clients are cheap and constructed per call site; they are
// never cached or shared across accounts.
type BundlerClient struct {
	rpc     *rpc.Client
	chainID uint64
	account Account
}

// NewBundlerClient wraps an RPC connection to a bundler endpoint, bound to
// the given account.
func NewBundlerClient(rpcClient *rpc.Client, chainID uint64, account Account) *BundlerClient {
	if account.EntryPoint == (common.Address{}) {
		account.EntryPoint = EntryPointV06
	}
	return &BundlerClient{rpc: rpcClient, chainID: chainID, account: account}
}

// Account returns the account this client is bound to.
func (c *BundlerClient) Account() Account {
	return c.account
}

// ChainID returns the chain this client submits to.
func (c *BundlerClient) ChainID() uint64 {
	return c.chainID
}

type gasEstimate struct {
	PreVerificationGas   *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big `json:"callGasLimit"`
}

type sponsorResult struct {
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData"`
	PreVerificationGas   *hexutil.Big  `json:"preVerificationGas"`
	VerificationGasLimit *hexutil.Big  `json:"verificationGasLimit"`
	CallGasLimit         *hexutil.Big  `json:"callGasLimit"`
}

// PrepareUserOperation builds an unsigned operation for the bound account:
// sender and nonce filled in, fee fields from the bundler's gas price, gas
// limits estimated, and paymaster sponsorship requested. The caller appends
// any calldata suffix, signs, and submits.
func (c *BundlerClient) PrepareUserOperation(ctx context.Context, caller ContractCaller, callData, initCode []byte) (*UserOperation, error) {
	nonce, err := GetNonce(ctx, caller, c.account.EntryPoint, c.account.Sender)
	if err != nil {
		return nil, err
	}

	var gasPrice hexutil.Big
	if err := c.rpc.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return nil, fmt.Errorf("failed to fetch bundler gas price: %w", err)
	}

	op := &UserOperation{
		Sender:               c.account.Sender,
		Nonce:                (*hexutil.Big)(nonce),
		InitCode:             initCode,
		CallData:             callData,
		MaxFeePerGas:         &gasPrice,
		MaxPriorityFeePerGas: &gasPrice,
		// Dummy signature so estimation accounts for signature gas.
		Signature: make(hexutil.Bytes, 65),
	}

	var est gasEstimate
	if err := c.rpc.CallContext(ctx, &est, "eth_estimateUserOperationGas", op, c.account.EntryPoint); err != nil {
		return nil, fmt.Errorf("failed to estimate user operation gas: %w", err)
	}
	op.PreVerificationGas = est.PreVerificationGas
	op.VerificationGasLimit = est.VerificationGasLimit
	op.CallGasLimit = est.CallGasLimit

	if err := c.sponsor(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// sponsor requests paymaster data for the operation. Sponsorship is always
// requested; a bundler without a paymaster endpoint is a send failure, not a
// silent fallback to self-funding.
func (c *BundlerClient) sponsor(ctx context.Context, op *UserOperation) error {
	var res sponsorResult
	if err := c.rpc.CallContext(ctx, &res, "pm_sponsorUserOperation", op, c.account.EntryPoint); err != nil {
		return fmt.Errorf("failed to sponsor user operation: %w", err)
	}
	op.PaymasterAndData = res.PaymasterAndData
	// Sponsorship may re-quote gas; honor the paymaster's figures when given.
	if res.PreVerificationGas != nil {
		op.PreVerificationGas = res.PreVerificationGas
	}
	if res.VerificationGasLimit != nil {
		op.VerificationGasLimit = res.VerificationGasLimit
	}
	if res.CallGasLimit != nil {
		op.CallGasLimit = res.CallGasLimit
	}
	return nil
}

// SignUserOperation computes the userOpHash and fills the signature from the
// bound account's signer.
func (c *BundlerClient) SignUserOperation(ctx context.Context, op *UserOperation) error {
	hash, err := op.Hash(c.account.EntryPoint, c.chainID)
	if err != nil {
		return err
	}
	sig, err := c.account.Signer.SignHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to sign user operation: %w", err)
	}
	op.Signature = sig
	return nil
}

// SendUserOperation submits the signed operation and returns its hash.
func (c *BundlerClient) SendUserOperation(ctx context.Context, op *UserOperation) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendUserOperation", op, c.account.EntryPoint); err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit user operation: %w", err)
	}
	logrus.Debugf("Submitted user operation %s for %s on chain %d", hash.Hex(), c.account.Sender.Hex(), c.chainID)
	return hash, nil
}

// GetUserOperationReceipt fetches the receipt for an operation hash. A nil
// receipt with nil error means the operation is still pending.
func (c *BundlerClient) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	var receipt *UserOperationReceipt
	if err := c.rpc.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", hash); err != nil {
		return nil, fmt.Errorf("failed to fetch user operation receipt: %w", err)
	}
	return receipt, nil
}

// WaitForReceipt polls the bundler until the operation is included or the
// context expires.
func (c *BundlerClient) WaitForReceipt(ctx context.Context, hash common.Hash) (*UserOperationReceipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.GetUserOperationReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for user operation %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// GasPrice returns the bundler's current gas price. Exposed for callers that
// prepare operations manually.
func (c *BundlerClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice hexutil.Big
	if err := c.rpc.CallContext(ctx, &gasPrice, "eth_gasPrice"); err != nil {
		return nil, fmt.Errorf("failed to fetch bundler gas price: %w", err)
	}
	return (*big.Int)(&gasPrice), nil
}
