// Package erc4337 implements the ERC-4337 client side: UserOperation
// construction and hashing for the v0.6 EntryPoint, and a bundler JSON-RPC
// client with gas estimation, paymaster sponsorship and receipt polling.
package erc4337

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethereum-optimism/actions-sub002/internal/signer"
)

// EntryPointV06 is the canonical v0.6 EntryPoint deployment, shared across
// all supported chains.
var EntryPointV06 = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

// Account binds a smart-account sender to the signer that authorizes its
// operations. A bundler client is always constructed for one Account and
// cannot be shared across accounts.
type Account struct {
	Sender     common.Address
	Signer     signer.Signer
	EntryPoint common.Address
}

// UserOperation is a v0.6 EntryPoint user operation. Field types use hexutil
// wrappers so the struct marshals directly into bundler JSON-RPC payloads.
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *hexutil.Big   `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *hexutil.Big   `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big   `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big   `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big   `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big   `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// UserOperationReceipt is the bundler's record of an included operation.
type UserOperationReceipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Paymaster     common.Address `json:"paymaster"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason,omitempty"`
	TxHash        common.Hash    `json:"transactionHash"`
}

var (
	packedOpArgs abi.Arguments
	hashArgs     abi.Arguments
	nonceArgs    abi.Arguments
	getNonceID   []byte
)

func init() {
	mustType := func(t string, components ...abi.ArgumentMarshaling) abi.Type {
		typ, err := abi.NewType(t, "", components)
		if err != nil {
			panic(fmt.Sprintf("bad abi type %s: %v", t, err))
		}
		return typ
	}
	addressT := mustType("address")
	uint256T := mustType("uint256")
	bytes32T := mustType("bytes32")
	uint192T := mustType("uint192")

	packedOpArgs = abi.Arguments{
		{Type: addressT}, // sender
		{Type: uint256T}, // nonce
		{Type: bytes32T}, // keccak(initCode)
		{Type: bytes32T}, // keccak(callData)
		{Type: uint256T}, // callGasLimit
		{Type: uint256T}, // verificationGasLimit
		{Type: uint256T}, // preVerificationGas
		{Type: uint256T}, // maxFeePerGas
		{Type: uint256T}, // maxPriorityFeePerGas
		{Type: bytes32T}, // keccak(paymasterAndData)
	}
	hashArgs = abi.Arguments{
		{Type: bytes32T}, // keccak(packedOp)
		{Type: addressT}, // entryPoint
		{Type: uint256T}, // chainID
	}
	nonceArgs = abi.Arguments{{Type: addressT}, {Type: uint192T}}
	getNonceID = crypto.Keccak256([]byte("getNonce(address,uint192)"))[:4]
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return (*big.Int)(v)
}

// Hash computes the canonical v0.6 userOpHash: the operation packed with its
// dynamic fields replaced by their keccak digests, then bound to the
// EntryPoint address and chain ID.
func (op *UserOperation) Hash(entryPoint common.Address, chainID uint64) (common.Hash, error) {
	packed, err := packedOpArgs.Pack(
		op.Sender,
		bigOrZero(op.Nonce),
		common.BytesToHash(crypto.Keccak256(op.InitCode)),
		common.BytesToHash(crypto.Keccak256(op.CallData)),
		bigOrZero(op.CallGasLimit),
		bigOrZero(op.VerificationGasLimit),
		bigOrZero(op.PreVerificationGas),
		bigOrZero(op.MaxFeePerGas),
		bigOrZero(op.MaxPriorityFeePerGas),
		common.BytesToHash(crypto.Keccak256(op.PaymasterAndData)),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack user operation: %w", err)
	}
	outer, err := hashArgs.Pack(
		common.BytesToHash(crypto.Keccak256(packed)),
		entryPoint,
		new(big.Int).SetUint64(chainID),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack user operation envelope: %w", err)
	}
	return crypto.Keccak256Hash(outer), nil
}

// ContractCaller is the minimal read-client surface needed for EntryPoint
// views. *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// GetNonce reads the sender's next nonce (key 0) from the EntryPoint.
func GetNonce(ctx context.Context, caller ContractCaller, entryPoint, sender common.Address) (*big.Int, error) {
	packed, err := nonceArgs.Pack(sender, new(big.Int))
	if err != nil {
		return nil, fmt.Errorf("failed to pack getNonce args: %w", err)
	}
	data := append(append([]byte{}, getNonceID...), packed...)
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &entryPoint, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getNonce call failed for %s: %w", sender.Hex(), err)
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("getNonce returned %d bytes, want 32", len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}
