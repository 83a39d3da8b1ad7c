//nolint:ireturn
package fees

import (
	"context"
	"math/big"

	"dwallet/internal/wallet/rpc"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Quote holds EIP-1559 fee parameters. On pre-1559 chains BaseFee and
// MaxFee are nil and GasPrice carries the legacy price.
type Quote struct {
	BaseFee     *big.Int
	PriorityFee *big.Int
	MaxFee      *big.Int
	GasPrice    *big.Int
}

// Legacy reports whether the chain exposed no base fee.
func (q *Quote) Legacy() bool {
	return q.BaseFee == nil
}

// Service produces fee suggestions for outgoing transactions.
type Service interface {
	// SuggestFees returns fee parameters for a chain. A non-nil hint (in
	// wei) bypasses the estimation cascade but is still clamped into the
	// priority-fee safety band.
	SuggestFees(ctx context.Context, chainID int64, hint *big.Int) (*Quote, error)
}

const (
	feeHistoryBlocks = 10
	tipPercentile    = 50

	// spreadDivisor scales down the (gasPrice - baseFee) spread when the
	// node offers no direct tip signal.
	spreadDivisor = 2

	baseFeeHeadroom = 2
)

var (
	// priority-fee safety band: 0.1 gwei to 100 gwei
	minPriorityFee = big.NewInt(100_000_000)
	maxPriorityFee = big.NewInt(100_000_000_000)

	defaultPriorityFee = big.NewInt(2_000_000_000)
)

// Config tunes the estimator. A nil DefaultPriorityFee falls back to
// the built-in 2 gwei default.
type Config struct {
	DefaultPriorityFee *big.Int
}

type service struct {
	clients    *rpc.Provider
	defaultTip *big.Int
	logger     zerolog.Logger
}

// NewService creates a fee estimation service.
func NewService(clients *rpc.Provider, config Config, logger zerolog.Logger) Service {
	tip := config.DefaultPriorityFee
	if tip == nil {
		tip = defaultPriorityFee
	}
	return &service{clients: clients, defaultTip: clampTip(tip), logger: logger}
}

// tipStrategy is one step of the priority-fee fallback cascade. Each
// strategy either yields a tip or fails, in which case the next one is
// tried.
type tipStrategy struct {
	name string
	run  func(ctx context.Context, client *rpc.Client) (*big.Int, error)
}

func (s *service) SuggestFees(ctx context.Context, chainID int64, hint *big.Int) (*Quote, error) {
	client, err := s.clients.ClientFor(chainID)
	if err != nil {
		return nil, err
	}

	header, err := client.LatestHeader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest header")
	}

	if header.BaseFee == nil {
		// pre-1559 chain: legacy gas pricing, no max fee
		price, err := client.GasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get legacy gas price")
		}
		return &Quote{PriorityFee: new(big.Int), GasPrice: price}, nil
	}

	baseFee := new(big.Int).Set(header.BaseFee)
	tip := hint
	if tip == nil {
		tip = s.resolveTip(ctx, client, baseFee, chainID)
	}
	tip = clampTip(tip)

	// maxFee = baseFee*2 + tip; the x2 is headroom against base-fee
	// movement over the next few blocks, not a tight bound.
	maxFee := new(big.Int).Mul(baseFee, big.NewInt(baseFeeHeadroom))
	maxFee.Add(maxFee, tip)

	return &Quote{BaseFee: baseFee, PriorityFee: tip, MaxFee: maxFee}, nil
}

// resolveTip walks the strategy cascade in order and returns the first
// successful result, falling back to a fixed conservative default.
func (s *service) resolveTip(ctx context.Context, client *rpc.Client, baseFee *big.Int, chainID int64) *big.Int {
	strategies := []tipStrategy{
		{name: "node_suggestion", run: suggestedTip},
		{name: "fee_history", run: feeHistoryTip},
		{name: "gas_price_spread", run: func(ctx context.Context, client *rpc.Client) (*big.Int, error) {
			return spreadTip(ctx, client, baseFee)
		}},
	}

	for _, strategy := range strategies {
		tip, err := strategy.run(ctx, client)
		if err != nil {
			s.logger.Debug().
				Int64("chain_id", chainID).
				Str("strategy", strategy.name).
				Err(err).
				Msg("Tip strategy failed, falling through")
			continue
		}
		return tip
	}
	return new(big.Int).Set(s.defaultTip)
}

// suggestedTip asks the node for its recommended priority fee.
func suggestedTip(ctx context.Context, client *rpc.Client) (*big.Int, error) {
	return client.SuggestGasTipCap(ctx)
}

// feeHistoryTip averages the median-percentile tips over the last few
// blocks.
func feeHistoryTip(ctx context.Context, client *rpc.Client) (*big.Int, error) {
	history, err := client.FeeHistory(ctx, feeHistoryBlocks, []float64{tipPercentile})
	if err != nil {
		return nil, err
	}

	sum := new(big.Int)
	count := 0
	for _, rewards := range history.Reward {
		if len(rewards) == 0 || rewards[0] == nil {
			continue
		}
		sum.Add(sum, rewards[0])
		count++
	}
	if count == 0 {
		return nil, errors.New("fee history contains no reward samples")
	}
	return sum.Div(sum, big.NewInt(int64(count))), nil
}

// spreadTip derives a tip from the spread between the current gas price
// and the base fee, scaled down conservatively.
func spreadTip(ctx context.Context, client *rpc.Client, baseFee *big.Int) (*big.Int, error) {
	price, err := client.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	spread := new(big.Int).Sub(price, baseFee)
	spread.Div(spread, big.NewInt(spreadDivisor))
	if spread.Cmp(minPriorityFee) < 0 {
		spread.Set(minPriorityFee)
	}
	return spread, nil
}

// clampTip forces a tip into the safety band regardless of its source.
func clampTip(tip *big.Int) *big.Int {
	clamped := new(big.Int).Set(tip)
	if clamped.Cmp(minPriorityFee) < 0 {
		clamped.Set(minPriorityFee)
	}
	if clamped.Cmp(maxPriorityFee) > 0 {
		clamped.Set(maxPriorityFee)
	}
	return clamped
}
