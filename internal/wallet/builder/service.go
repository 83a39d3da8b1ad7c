//nolint:ireturn
package builder

import (
	"context"
	"math/big"

	"dwallet/internal/wallet/fees"
	"dwallet/internal/wallet/rpc"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service composes unsigned transaction drafts: address normalization,
// nonce acquisition from the remote pending view, fee and gas
// resolution.
type Service interface {
	// Build resolves every field of a draft. The nonce comes from the
	// node's pending transaction count, not from local history.
	Build(ctx context.Context, params Params) (*Draft, error)
}

type service struct {
	clients *rpc.Provider
	fees    fees.Service
	logger  zerolog.Logger
}

// NewService creates a transaction builder.
func NewService(clients *rpc.Provider, feeService fees.Service, logger zerolog.Logger) Service {
	return &service{clients: clients, fees: feeService, logger: logger}
}

func (s *service) Build(ctx context.Context, params Params) (*Draft, error) {
	draft, err := validate(params)
	if err != nil {
		return nil, err
	}

	client, err := s.clients.ClientFor(params.ChainID)
	if err != nil {
		return nil, err
	}

	nonce, err := client.PendingNonceAt(ctx, draft.From)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pending nonce")
	}
	draft.Nonce = nonce

	quote, err := s.fees.SuggestFees(ctx, params.ChainID, params.PriorityFeeHint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to suggest fees")
	}
	if quote.Legacy() {
		// pre-1559 chain: carry the legacy price as the fee cap
		draft.MaxFeePerGas = quote.GasPrice
		draft.MaxPriorityFeePerGas = new(big.Int)
	} else {
		draft.MaxFeePerGas = quote.MaxFee
		draft.MaxPriorityFeePerGas = quote.PriorityFee
	}

	if params.GasLimit > 0 {
		draft.GasLimit = params.GasLimit
	} else {
		draft.GasLimit = s.estimateGasLimit(ctx, client, draft)
	}

	return draft, nil
}

// validate checks required fields and normalizes addresses to their
// canonical checksummed form.
func validate(params Params) (*Draft, error) {
	if params.From == "" {
		return nil, &MissingFieldError{Field: "from"}
	}
	if !common.IsHexAddress(params.From) {
		return nil, &InvalidAddressError{Field: "from", Value: params.From}
	}
	if params.Value == nil {
		return nil, &MissingFieldError{Field: "value"}
	}
	if params.Value.Sign() < 0 {
		return nil, errors.Errorf("value must not be negative, got %s", params.Value)
	}

	draft := &Draft{
		From:    common.HexToAddress(params.From),
		Value:   new(big.Int).Set(params.Value),
		ChainID: params.ChainID,
	}

	if params.To != "" {
		if !common.IsHexAddress(params.To) {
			return nil, &InvalidAddressError{Field: "to", Value: params.To}
		}
		to := common.HexToAddress(params.To)
		draft.To = &to
	}
	if len(params.Data) > 0 {
		draft.Data = params.Data
	}

	return draft, nil
}
