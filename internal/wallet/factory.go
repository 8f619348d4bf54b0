package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/erc4337"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// FactoryAddress is the canonical smart-account factory, deployed at the
// same address on every supported chain. Address prediction is therefore
// chain-independent and performed against exactly one configured chain.
var FactoryAddress = common.HexToAddress("0x0BA5ED0c6AA8c49038F819E587E2633c4A9F428a")

const factoryABIJSON = `[
	{"name":"getAddress","type":"function","stateMutability":"view","inputs":[{"name":"owners","type":"bytes[]"},{"name":"nonce","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"name":"createAccount","type":"function","stateMutability":"payable","inputs":[{"name":"owners","type":"bytes[]"},{"name":"nonce","type":"uint256"}],"outputs":[{"name":"","type":"address"}]}
]`

const accountABIJSON = `[
	{"name":"execute","type":"function","stateMutability":"payable","inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]},
	{"name":"executeBatch","type":"function","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}]}],"outputs":[]}
]`

var (
	factoryABI    abi.ABI
	accountABI    abi.ABI
	parseABIsOnce sync.Once
)

func parseABIs() {
	parseABIsOnce.Do(func() {
		var err error
		factoryABI, err = abi.JSON(strings.NewReader(factoryABIJSON))
		if err != nil {
			panic(fmt.Sprintf("failed to parse factory ABI: %v", err))
		}
		accountABI, err = abi.JSON(strings.NewReader(accountABIJSON))
		if err != nil {
			panic(fmt.Sprintf("failed to parse account ABI: %v", err))
		}
	})
}

// DeriveAddress predicts the smart account address for (owners, nonce) by
// reading the factory's prediction function. Idempotent and side-effect
// free: identical inputs always yield the identical address.
func DeriveAddress(ctx context.Context, caller erc4337.ContractCaller, owners []Owner, nonce *big.Int) (common.Address, error) {
	parseABIs()
	if nonce == nil {
		nonce = new(big.Int)
	}
	data, err := factoryABI.Pack("getAddress", EncodeOwners(owners), nonce)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack getAddress: %w", err)
	}
	to := FactoryAddress
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory getAddress call failed: %w", err)
	}
	values, err := factoryABI.Unpack("getAddress", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack getAddress result: %w", err)
	}
	return values[0].(common.Address), nil
}

// BuildInitCode assembles the ERC-4337 initCode for (owners, nonce): the
// factory address followed by the createAccount calldata.
func BuildInitCode(owners []Owner, nonce *big.Int) ([]byte, error) {
	parseABIs()
	if nonce == nil {
		nonce = new(big.Int)
	}
	data, err := factoryABI.Pack("createAccount", EncodeOwners(owners), nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to pack createAccount: %w", err)
	}
	return append(FactoryAddress.Bytes(), data...), nil
}

// accountCall mirrors the account contract's call tuple for ABI packing.
type accountCall struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

// EncodeExecute packs a single account execution.
func EncodeExecute(tx types.TransactionData) ([]byte, error) {
	parseABIs()
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	data, err := accountABI.Pack("execute", tx.To, value, tx.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to pack execute: %w", err)
	}
	return data, nil
}

// EncodeExecuteBatch packs an atomic multi-call account execution, preserving
// order: the account executes the calls strictly in sequence.
func EncodeExecuteBatch(txs []types.TransactionData) ([]byte, error) {
	parseABIs()
	calls := make([]accountCall, len(txs))
	for i, tx := range txs {
		value := tx.Value
		if value == nil {
			value = new(big.Int)
		}
		data := tx.Data
		if data == nil {
			data = []byte{}
		}
		calls[i] = accountCall{Target: tx.To, Value: value, Data: data}
	}
	data, err := accountABI.Pack("executeBatch", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeBatch: %w", err)
	}
	return data, nil
}
