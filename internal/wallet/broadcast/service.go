//nolint:ireturn
package broadcast

import (
	"context"
	"time"

	"dwallet/internal/wallet/rpc"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service submits signed transactions and waits for their receipts.
type Service interface {
	// Submit sends raw signed bytes to the network once, without
	// retrying, and returns the hash the node accepted. Node-side
	// validation errors are surfaced unmodified.
	Submit(ctx context.Context, chainID int64, raw []byte) (common.Hash, error)

	// WaitReceipt polls for a receipt until the timeout elapses. A nil
	// receipt with a nil error means the transaction is still pending;
	// callers must re-poll later using the persisted hash.
	WaitReceipt(ctx context.Context, chainID int64, hash common.Hash, timeout, pollInterval time.Duration) (*types.Receipt, error)
}

// defaultPollInterval keeps WaitReceipt usable for callers that leave
// the interval unset; a ticker cannot be built from zero.
const defaultPollInterval = time.Second

type service struct {
	clients *rpc.Provider
	logger  zerolog.Logger
}

// NewService creates a broadcast service.
func NewService(clients *rpc.Provider, logger zerolog.Logger) Service {
	return &service{clients: clients, logger: logger}
}

func (s *service) Submit(ctx context.Context, chainID int64, raw []byte) (common.Hash, error) {
	client, err := s.clients.ClientFor(chainID)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, err
	}

	s.logger.Info().
		Int64("chain_id", chainID).
		Str("tx_hash", hash.Hex()).
		Msg("Transaction broadcast")
	return hash, nil
}

func (s *service) WaitReceipt(ctx context.Context, chainID int64, hash common.Hash, timeout, pollInterval time.Duration) (*types.Receipt, error) {
	client, err := s.clients.ClientFor(chainID)
	if err != nil {
		return nil, err
	}

	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			s.logger.Info().
				Int64("chain_id", chainID).
				Str("tx_hash", hash.Hex()).
				Uint64("block", receipt.BlockNumber.Uint64()).
				Uint64("status", receipt.Status).
				Msg("Receipt found")
			return receipt, nil
		}

		switch {
		case errors.Is(err, ethereum.NotFound):
			// still pending, keep polling
		case ctx.Err() != nil:
			// deadline hit during the lookup
		default:
			// any other lookup failure is treated as transient within
			// the wait window
			s.logger.Warn().
				Str("tx_hash", hash.Hex()).
				Err(err).
				Msg("Receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			s.logger.Info().
				Str("tx_hash", hash.Hex()).
				Dur("timeout", timeout).
				Msg("Receipt wait ended without confirmation")
			return nil, nil
		case <-ticker.C:
		}
	}
}
