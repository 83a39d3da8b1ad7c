//nolint:ireturn
package withdraw

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"dwallet/internal/wallet/broadcast"
	"dwallet/internal/wallet/builder"
	"dwallet/internal/wallet/fees"
	"dwallet/internal/wallet/ledger"
	"dwallet/internal/wallet/rpc"
	"dwallet/internal/wallet/signer"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service orchestrates the withdrawal pipeline: build, balance check,
// sign, ledger insert, broadcast, ledger update, optional receipt wait.
type Service interface {
	// Withdraw runs the full pipeline for one request. No step is
	// retried; any failure aborts the remainder. Once the ledger insert
	// has succeeded, later failures leave the SIGNED record in place
	// for manual reconciliation.
	Withdraw(ctx context.Context, req *Request) (*Result, error)

	// AwaitConfirmation re-polls for a receipt of an already broadcast
	// transaction and upgrades its ledger record to CONFIRMED when the
	// receipt's status flag is set. A nil receipt means still pending.
	AwaitConfirmation(ctx context.Context, chainID int64, hash common.Hash, timeout, pollInterval time.Duration) (*types.Receipt, error)
}

type service struct {
	builder     builder.Service
	fees        fees.Service
	signer      signer.Service
	ledger      ledger.Service
	broadcaster broadcast.Service
	clients     *rpc.Provider
	logger      zerolog.Logger
	locks       *senderLocks
}

// NewService creates the withdrawal orchestrator.
func NewService(
	builderService builder.Service,
	feeService fees.Service,
	signerService signer.Service,
	ledgerService ledger.Service,
	broadcastService broadcast.Service,
	clients *rpc.Provider,
	logger zerolog.Logger,
) Service {
	return &service{
		builder:     builderService,
		fees:        feeService,
		signer:      signerService,
		ledger:      ledgerService,
		broadcaster: broadcastService,
		clients:     clients,
		logger:      logger,
		locks:       newSenderLocks(),
	}
}

func (s *service) Withdraw(ctx context.Context, req *Request) (*Result, error) {
	// serialize per (sender, chain) from nonce acquisition through
	// broadcast; the receipt wait happens outside the lock
	unlock := s.locks.acquire(req.From, req.ChainID)
	result, err := s.submit(ctx, req)
	unlock()
	if err != nil {
		return nil, err
	}

	if req.Wait {
		receipt, err := s.AwaitConfirmation(ctx, req.ChainID, result.Hash, req.WaitTimeout, req.PollInterval)
		if err != nil {
			return nil, err
		}
		result.Receipt = receipt
	}
	return result, nil
}

// submit runs the pipeline up to and including the BROADCAST ledger
// update.
func (s *service) submit(ctx context.Context, req *Request) (*Result, error) {
	draft, err := s.builder.Build(ctx, builder.Params{
		ChainID:         req.ChainID,
		From:            req.From,
		To:              req.To,
		Value:           req.ValueWei,
		GasLimit:        req.GasLimit,
		PriorityFeeHint: req.PriorityFeeHint,
	})
	if err != nil {
		return nil, err
	}

	// a second, authoritative balance check against a fresh worst-case
	// fee, using the draft's gas limit
	quote, err := s.fees.SuggestFees(ctx, req.ChainID, req.PriorityFeeHint)
	if err != nil {
		return nil, err
	}
	maxFee := quote.MaxFee
	if quote.Legacy() {
		maxFee = quote.GasPrice
	}
	if err := s.ensureSufficient(ctx, req.ChainID, draft.From, draft.Value, draft.GasLimit, maxFee); err != nil {
		return nil, err
	}

	// signing failures abort before any ledger write
	signed, err := s.signer.SignWithdrawal(ctx, draft, req.Password)
	if err != nil {
		return nil, err
	}

	record := &ledger.Transaction{
		Hash:     signed.Hash.Hex(),
		Sender:   draft.From.Hex(),
		ValueWei: draft.Value.String(),
		Nonce:    draft.Nonce,
		ChainID:  draft.ChainID,
		Status:   ledger.StatusSigned,
		Raw:      signed.Raw,
	}
	if draft.To != nil {
		record.Recipient = sql.NullString{String: draft.To.Hex(), Valid: true}
	}
	if err := s.ledger.InsertTransaction(ctx, record); err != nil {
		return nil, err
	}

	hash, err := s.broadcaster.Submit(ctx, req.ChainID, signed.Raw)
	if err != nil {
		// the SIGNED record stays behind for manual reconciliation
		return nil, errors.Wrapf(err, "broadcast failed, transaction %s remains signed but unsent", signed.Hash.Hex())
	}

	if hash != signed.Hash {
		// the node-reported hash is authoritative; move the record so
		// every later lookup and status update finds it
		s.logger.Warn().
			Str("signed_hash", signed.Hash.Hex()).
			Str("broadcast_hash", hash.Hex()).
			Msg("Node reported a different transaction hash")
		if err := s.ledger.RekeyTransaction(ctx, signed.Hash.Hex(), hash.Hex()); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if err := s.ledger.UpdateStatus(ctx, hash.Hex(), ledger.StatusBroadcast, &now); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("chain_id", req.ChainID).
		Str("tx_hash", hash.Hex()).
		Uint64("nonce", draft.Nonce).
		Str("value_wei", draft.Value.String()).
		Msg("Withdrawal broadcast")

	return &Result{Hash: hash, Raw: signed.Raw, Draft: draft}, nil
}

func (s *service) AwaitConfirmation(ctx context.Context, chainID int64, hash common.Hash, timeout, pollInterval time.Duration) (*types.Receipt, error) {
	receipt, err := s.broadcaster.WaitReceipt(ctx, chainID, hash, timeout, pollInterval)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, nil
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		if err := s.ledger.UpdateStatus(ctx, hash.Hex(), ledger.StatusConfirmed, nil); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

// ensureSufficient verifies the sender can cover value plus the
// worst-case gas cost. The check uses the maximum possible price, not
// the expected effective one, so a withdrawal is never under-provisioned.
func (s *service) ensureSufficient(ctx context.Context, chainID int64, sender common.Address, value *big.Int, gasLimit uint64, maxFeePerGas *big.Int) error {
	client, err := s.clients.ClientFor(chainID)
	if err != nil {
		return err
	}

	balance, err := client.BalanceAt(ctx, sender)
	if err != nil {
		return errors.Wrap(err, "failed to get sender balance")
	}

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), maxFeePerGas)
	required := new(big.Int).Add(value, gasCost)
	if balance.Cmp(required) < 0 {
		return &InsufficientFundsError{Balance: balance, Required: required}
	}
	return nil
}
