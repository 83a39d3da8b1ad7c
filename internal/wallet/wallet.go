package wallet

import (
	"math/big"

	"dwallet/internal/config"
	"dwallet/internal/wallet/broadcast"
	"dwallet/internal/wallet/builder"
	"dwallet/internal/wallet/chain"
	"dwallet/internal/wallet/fees"
	"dwallet/internal/wallet/ledger"
	"dwallet/internal/wallet/rpc"
	"dwallet/internal/wallet/signer"
	"dwallet/internal/wallet/withdraw"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const weiPerGwei = 1_000_000_000

// Wallet bundles the fully wired service stack. It is built once per
// process by the cmd layer and torn down with Close.
type Wallet struct {
	Config   config.Config
	Logger   zerolog.Logger
	Registry *chain.Registry
	Clients  *rpc.Provider

	Ledger    ledger.Service
	Fees      fees.Service
	Builder   builder.Service
	Signer    signer.Service
	Broadcast broadcast.Service
	Withdraw  withdraw.Service
}

// New wires every service from the given configuration.
func New(cfg config.Config) (*Wallet, error) {
	logger := cfg.Logger()

	registry, err := chain.LoadRegistry(cfg.ChainsFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chain registry")
	}
	clients := rpc.NewProvider(registry, logger)

	ledgerService, err := ledger.NewService(cfg.DatabasePath)
	if err != nil {
		clients.Close()
		return nil, errors.Wrap(err, "failed to open transaction ledger")
	}

	signerService, err := signer.NewService(ledgerService, signer.Config{KeystoreDir: cfg.KeystoreDir}, logger)
	if err != nil {
		clients.Close()
		_ = ledgerService.Close()
		return nil, errors.Wrap(err, "failed to create signer service")
	}

	var defaultTip *big.Int
	if cfg.DefaultPriorityFeeGwei > 0 {
		defaultTip = new(big.Int).Mul(big.NewInt(cfg.DefaultPriorityFeeGwei), big.NewInt(weiPerGwei))
	}
	feeService := fees.NewService(clients, fees.Config{DefaultPriorityFee: defaultTip}, logger)
	builderService := builder.NewService(clients, feeService, logger)
	broadcastService := broadcast.NewService(clients, logger)

	return &Wallet{
		Config:    cfg,
		Logger:    logger,
		Registry:  registry,
		Clients:   clients,
		Ledger:    ledgerService,
		Fees:      feeService,
		Builder:   builderService,
		Signer:    signerService,
		Broadcast: broadcastService,
		Withdraw: withdraw.NewService(
			builderService,
			feeService,
			signerService,
			ledgerService,
			broadcastService,
			clients,
			logger,
		),
	}, nil
}

// Close releases RPC connections and the ledger database.
func (w *Wallet) Close() error {
	w.Clients.Close()
	return w.Ledger.Close()
}
