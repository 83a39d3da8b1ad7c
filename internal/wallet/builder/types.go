package builder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Params are the caller-supplied inputs for composing a transaction
// draft. Zero GasLimit means "estimate"; nil PriorityFeeHint means "run
// the fee cascade"; empty To means contract creation.
type Params struct {
	ChainID         int64
	From            string
	To              string
	Value           *big.Int
	Data            []byte
	GasLimit        uint64
	PriorityFeeHint *big.Int
}

// Draft is an unsigned EIP-1559 transaction with every field resolved.
// Optional fields are represented explicitly: a nil To means contract
// creation, nil Data means no call data.
type Draft struct {
	From                 common.Address
	To                   *common.Address
	Value                *big.Int
	Data                 []byte
	ChainID              int64
	Nonce                uint64
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// MissingFieldError reports a required field that was left unset.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// InvalidAddressError reports a malformed address input.
type InvalidAddressError struct {
	Field string
	Value string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("field %q is not a valid address: %q", e.Field, e.Value)
}
