//nolint:ireturn
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Service is the local transaction ledger. Every logical operation is
// its own auto-committed statement; no transaction spans a network call.
type Service interface {
	// InsertTransaction records a new transaction. A hash collision
	// yields DuplicateHashError.
	InsertTransaction(ctx context.Context, record *Transaction) error

	// UpdateStatus advances a record's status. submittedAt, when
	// non-nil, is persisted once and kept on later updates. Same-status
	// updates succeed as no-ops so re-polling stays idempotent;
	// backward transitions yield InvalidTransitionError.
	UpdateStatus(ctx context.Context, hash string, status Status, submittedAt *time.Time) error

	// RekeyTransaction moves a record to a new hash, for the case where
	// the node reports a different canonical hash than the one computed
	// locally. The new hash yields DuplicateHashError when taken.
	RekeyTransaction(ctx context.Context, oldHash, newHash string) error

	// GetTransaction returns a record, or nil when the hash is unknown.
	GetTransaction(ctx context.Context, hash string) (*Transaction, error)

	// MaxKnownNonce returns the highest locally recorded nonce for a
	// sender on a chain. Informational only; nonce assignment uses the
	// remote pending view.
	MaxKnownNonce(ctx context.Context, sender string, chainID int64) (uint64, bool, error)

	// InsertAccount records an address and its keystore path.
	InsertAccount(ctx context.Context, account *Account) error

	// GetAccount returns an account, or nil when the address is unknown.
	GetAccount(ctx context.Context, address string) (*Account, error)

	// ListAccounts returns all known accounts, oldest first.
	ListAccounts(ctx context.Context) ([]Account, error)

	Close() error
}

// ErrAccountExists is returned when inserting an address that is already
// recorded.
var ErrAccountExists = errors.New("account already exists")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		hash TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		recipient TEXT,
		value_wei TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		chain_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		raw BLOB,
		submitted_at INTEGER,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tx_sender_chain_nonce ON transactions (sender, chain_id, nonce)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		address TEXT PRIMARY KEY,
		keystore_path TEXT NOT NULL,
		label TEXT,
		created_at INTEGER NOT NULL
	)`,
}

type service struct {
	db *sqlx.DB
}

// NewService opens (or creates) the ledger database at the given path,
// applies the WAL pragmas and ensures the schema exists.
func NewService(databasePath string) (Service, error) {
	if databasePath == "" {
		return nil, errors.New("ledger database path is required")
	}
	if dir := filepath.Dir(databasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create ledger directory")
		}
	}

	db, err := sqlx.Open("sqlite", databasePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger database")
	}

	// WAL allows concurrent readers during writes; NORMAL sync is the
	// accepted durability tradeoff for a WAL journal.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "failed to apply %q", pragma)
		}
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "failed to create ledger schema")
		}
	}

	return &service{db: db}, nil
}

func (s *service) Close() error {
	return s.db.Close()
}

func (s *service) InsertTransaction(ctx context.Context, record *Transaction) error {
	if !record.Status.Valid() {
		return errors.Errorf("invalid status %q", record.Status)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (hash, sender, recipient, value_wei, nonce, chain_id, status, raw, submitted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(record.Hash),
		strings.ToLower(record.Sender),
		lowerNullString(record.Recipient),
		record.ValueWei,
		record.Nonce,
		record.ChainID,
		record.Status,
		record.Raw,
		record.SubmittedAt,
		time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &DuplicateHashError{Hash: strings.ToLower(record.Hash)}
		}
		return errors.Wrap(err, "failed to insert transaction record")
	}
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, hash string, status Status, submittedAt *time.Time) error {
	if !status.Valid() {
		return errors.Errorf("invalid status %q", status)
	}

	var submitted sql.NullInt64
	if submittedAt != nil {
		submitted = sql.NullInt64{Int64: submittedAt.Unix(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions
		 SET status = ?, submitted_at = COALESCE(?, submitted_at), updated_at = ?
		 WHERE hash = ?
		   AND (CASE status WHEN 'SIGNED' THEN 1 WHEN 'BROADCAST' THEN 2 WHEN 'CONFIRMED' THEN 3 ELSE 0 END)
		     <= (CASE ? WHEN 'SIGNED' THEN 1 WHEN 'BROADCAST' THEN 2 WHEN 'CONFIRMED' THEN 3 ELSE 0 END)`,
		status, submitted, time.Now().Unix(), strings.ToLower(hash), status,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update transaction status")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		existing, err := s.GetTransaction(ctx, hash)
		if err != nil {
			return err
		}
		if existing == nil {
			return errors.Errorf("transaction %s not found", strings.ToLower(hash))
		}
		return &InvalidTransitionError{Hash: existing.Hash, From: existing.Status, To: status}
	}
	return nil
}

func (s *service) RekeyTransaction(ctx context.Context, oldHash, newHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET hash = ?, updated_at = ? WHERE hash = ?`,
		strings.ToLower(newHash), time.Now().Unix(), strings.ToLower(oldHash),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &DuplicateHashError{Hash: strings.ToLower(newHash)}
		}
		return errors.Wrap(err, "failed to rekey transaction record")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.Errorf("transaction %s not found", strings.ToLower(oldHash))
	}
	return nil
}

func (s *service) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	var record Transaction
	err := s.db.GetContext(ctx, &record,
		`SELECT hash, sender, recipient, value_wei, nonce, chain_id, status, raw, submitted_at, updated_at
		 FROM transactions WHERE hash = ?`,
		strings.ToLower(hash),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction record")
	}
	return &record, nil
}

func (s *service) MaxKnownNonce(ctx context.Context, sender string, chainID int64) (uint64, bool, error) {
	var nonce sql.NullInt64
	err := s.db.GetContext(ctx, &nonce,
		`SELECT MAX(nonce) FROM transactions WHERE sender = ? AND chain_id = ?`,
		strings.ToLower(sender), chainID,
	)
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to query max known nonce")
	}
	if !nonce.Valid {
		return 0, false, nil
	}
	return uint64(nonce.Int64), true, nil
}

func (s *service) InsertAccount(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (address, keystore_path, label, created_at) VALUES (?, ?, ?, ?)`,
		strings.ToLower(account.Address),
		account.KeystorePath,
		account.Label,
		time.Now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountExists
		}
		return errors.Wrap(err, "failed to insert account")
	}
	return nil
}

func (s *service) GetAccount(ctx context.Context, address string) (*Account, error) {
	var account Account
	err := s.db.GetContext(ctx, &account,
		`SELECT address, keystore_path, label, created_at FROM accounts WHERE address = ?`,
		strings.ToLower(address),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}
	return &account, nil
}

func (s *service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.db.SelectContext(ctx, &accounts,
		`SELECT address, keystore_path, label, created_at FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}
	return accounts, nil
}

func lowerNullString(v sql.NullString) sql.NullString {
	if v.Valid {
		v.String = strings.ToLower(v.String)
	}
	return v
}

// isUniqueViolation matches SQLite's primary-key constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
