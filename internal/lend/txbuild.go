package lend

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethereum-optimism/actions-sub002/internal/types"
)

// Minimal ERC-20 ABI for the calls the lending layer assembles.
const erc20ABIJSON = `[
	{"name":"approve","type":"function","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"balanceOf","type":"function","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

var (
	erc20ABI     *abi.ABI
	erc20ABIOnce sync.Once
)

// ERC20ABI returns the lazily parsed minimal ERC-20 ABI.
func ERC20ABI() *abi.ABI {
	erc20ABIOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		erc20ABI = &parsed
	})
	return erc20ABI
}

// BuildApprovalTx assembles a standard ERC-20 approval of amount to spender.
// Pure calldata construction, no I/O.
func BuildApprovalTx(token, spender common.Address, amount *big.Int) (types.TransactionData, error) {
	data, err := ERC20ABI().Pack("approve", spender, amount)
	if err != nil {
		return types.TransactionData{}, fmt.Errorf("failed to encode approval: %w", err)
	}
	return types.TransactionData{To: token, Data: data, Value: new(big.Int)}, nil
}

// BuildLendTransaction assembles the LendTransaction result from its parts.
// Pure, no I/O; adapters call it after constructing their protocol calldata.
func BuildLendTransaction(
	amount *big.Int,
	assetAddress common.Address,
	marketID types.MarketID,
	apy types.APYBreakdown,
	approval *types.TransactionData,
	action types.TransactionData,
	kind types.LendTransactionKind,
) *types.LendTransaction {
	return &types.LendTransaction{
		Amount:       amount,
		AssetAddress: assetAddress,
		MarketID:     marketID,
		APY:          apy,
		Transactions: types.LendTransactionBundle{
			Approval: approval,
			Action:   action,
			Kind:     kind,
		},
	}
}
