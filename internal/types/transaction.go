package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionData is a self-contained call payload: destination, calldata and
// native value. Instances are never mutated after construction.
type TransactionData struct {
	To    common.Address `json:"to"`
	Data  []byte         `json:"data"`
	Value *big.Int       `json:"value"`
}

// LendTransactionKind tags the main action of a lend transaction bundle.
type LendTransactionKind string

const (
	LendOpenPosition  LendTransactionKind = "openPosition"
	LendClosePosition LendTransactionKind = "closePosition"
)

// LendTransactionBundle groups the transactions needed to execute one lending
// action. When Approval is non-nil it must be submitted before Action, as a
// single atomic batch.
type LendTransactionBundle struct {
	Approval *TransactionData    `json:"approval,omitempty"`
	Action   TransactionData     `json:"action"`
	Kind     LendTransactionKind `json:"kind"`
}

// LendTransaction is the result of assembling an open- or close-position
// request: the resolved amount and asset, the market acted on, an APY
// snapshot from the read that produced it, and the transaction bundle.
type LendTransaction struct {
	Amount       *big.Int              `json:"amount"`
	AssetAddress common.Address        `json:"assetAddress"`
	MarketID     MarketID              `json:"marketId"`
	APY          APYBreakdown          `json:"apy"`
	Transactions LendTransactionBundle `json:"transactionData"`
	SlippageBps  uint32                `json:"slippageBps,omitempty"`
}
