package builder

import (
	"context"

	"dwallet/internal/wallet/rpc"

	"github.com/ethereum/go-ethereum"
)

// Gas limit floors and fallbacks. Plain transfers cost exactly 21000;
// calls carrying data get a higher floor because estimation can
// undershoot on state-dependent contracts.
const (
	minGasPlainTransfer = 21000
	minGasWithData      = 50000

	fallbackGasPlainTransfer = 50000
	fallbackGasWithData      = 100000

	gasBufferNumerator   = 3
	gasBufferDenominator = 2
)

// estimateGasLimit asks the node to simulate the call with the minimal
// parameter set (fee fields are omitted so estimation cannot fail on
// them) and pads the result. When the node refuses to estimate, a fixed
// fallback is used instead of failing the withdrawal.
func (s *service) estimateGasLimit(ctx context.Context, client *rpc.Client, draft *Draft) uint64 {
	msg := ethereum.CallMsg{
		From:  draft.From,
		To:    draft.To,
		Value: draft.Value,
		Data:  draft.Data,
	}

	raw, err := client.EstimateGas(ctx, msg)
	if err != nil {
		s.logger.Warn().
			Int64("chain_id", draft.ChainID).
			Err(err).
			Msg("Gas estimation failed, using fallback limit")
		if len(draft.Data) > 0 {
			return fallbackGasWithData
		}
		return fallbackGasPlainTransfer
	}

	buffered := raw * gasBufferNumerator / gasBufferDenominator
	floor := uint64(minGasPlainTransfer)
	if len(draft.Data) > 0 {
		floor = minGasWithData
	}
	if buffered < floor {
		return floor
	}
	return buffered
}
