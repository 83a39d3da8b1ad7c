//nolint:ireturn
package signer

import (
	"context"
	"database/sql"
	"os"
	"strings"

	"dwallet/internal/wallet/builder"
	"dwallet/internal/wallet/ledger"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const minPasswordLength = 8

// Config controls where keystore files live and how expensive the
// scrypt KDF is. Zero scrypt values mean the standard parameters.
type Config struct {
	KeystoreDir string
	ScryptN     int
	ScryptP     int
}

type service struct {
	ledger ledger.Service
	config Config
	logger zerolog.Logger
}

// NewService creates a signer backed by keystore v3 files on disk, with
// account metadata in the ledger.
func NewService(ledgerService ledger.Service, config Config, logger zerolog.Logger) (Service, error) {
	if config.KeystoreDir == "" {
		return nil, errors.New("keystore directory is required")
	}
	if config.ScryptN == 0 {
		config.ScryptN = keystore.StandardScryptN
		config.ScryptP = keystore.StandardScryptP
	}
	return &service{ledger: ledgerService, config: config, logger: logger}, nil
}

func (s *service) SignWithdrawal(ctx context.Context, draft *builder.Draft, password string) (*SignedTx, error) {
	account, err := s.ledger.GetAccount(ctx, draft.From.Hex())
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	keyJSON, err := os.ReadFile(account.KeystorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeystoreMissing
		}
		return nil, errors.Wrap(err, "failed to read keystore file")
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, ErrBadPassword
	}
	defer zeroKey(key)

	if crypto.PubkeyToAddress(key.PrivateKey.PublicKey) != draft.From {
		return nil, ErrAddressMismatch
	}

	signed, err := signEIP1559(draft, key.PrivateKey)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("address", draft.From.Hex()).
		Str("tx_hash", signed.Hash.Hex()).
		Msg("Transaction signed")
	return signed, nil
}

func (s *service) CreateAccount(ctx context.Context, password, label string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errPasswordTooShort
	}

	ks := keystore.NewKeyStore(s.config.KeystoreDir, s.config.ScryptN, s.config.ScryptP)
	account, err := ks.NewAccount(password)
	if err != nil {
		return "", errors.Wrap(err, "failed to create keystore account")
	}

	if err := s.recordAccount(ctx, account.Address.Hex(), account.URL.Path, label); err != nil {
		return "", err
	}
	return account.Address.Hex(), nil
}

func (s *service) ImportPrivateKey(ctx context.Context, privateKeyHex, password, label string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errPasswordTooShort
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", errors.Wrap(err, "invalid private key")
	}

	ks := keystore.NewKeyStore(s.config.KeystoreDir, s.config.ScryptN, s.config.ScryptP)
	account, err := ks.ImportECDSA(privateKey, password)
	if err != nil {
		return "", errors.Wrap(err, "failed to import key")
	}

	if err := s.recordAccount(ctx, account.Address.Hex(), account.URL.Path, label); err != nil {
		return "", err
	}
	return account.Address.Hex(), nil
}

func (s *service) recordAccount(ctx context.Context, address, keystorePath, label string) error {
	record := &ledger.Account{Address: address, KeystorePath: keystorePath}
	if label != "" {
		record.Label = sql.NullString{String: label, Valid: true}
	}
	if err := s.ledger.InsertAccount(ctx, record); err != nil {
		return err
	}
	s.logger.Info().
		Str("address", address).
		Str("keystore", keystorePath).
		Msg("Account recorded")
	return nil
}

// zeroKey wipes the private scalar after use.
func zeroKey(key *keystore.Key) {
	bits := key.PrivateKey.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
}
