package withdraw

import (
	"fmt"
	"math/big"
	"time"

	"dwallet/internal/wallet/builder"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Request describes one withdrawal. ValueWei is the amount in base
// units; a nil PriorityFeeHint runs the fee cascade; a zero GasLimit
// triggers estimation.
type Request struct {
	ChainID         int64
	From            string
	To              string
	ValueWei        *big.Int
	Password        string
	PriorityFeeHint *big.Int
	GasLimit        uint64

	// Wait makes the withdrawal block on receipt confirmation.
	Wait         bool
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// Result is what the caller gets back once the transaction has been
// accepted by the network. Receipt is only set when waiting was
// requested and the transaction confirmed within the window.
type Result struct {
	Hash    common.Hash
	Raw     []byte
	Draft   *builder.Draft
	Receipt *types.Receipt
}

// InsufficientFundsError reports a balance that cannot cover the value
// plus the worst-case gas cost.
type InsufficientFundsError struct {
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance=%s required=%s", e.Balance, e.Required)
}
