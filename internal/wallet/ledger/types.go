package ledger

import (
	"database/sql"
	"fmt"
)

// Status is the persisted lifecycle state of a transaction record.
// Transitions are monotonic: SIGNED -> BROADCAST -> CONFIRMED.
type Status string

const (
	StatusSigned    Status = "SIGNED"
	StatusBroadcast Status = "BROADCAST"
	StatusConfirmed Status = "CONFIRMED"
)

// rank orders statuses for the forward-only transition guard.
func (s Status) rank() int {
	switch s {
	case StatusSigned:
		return 1
	case StatusBroadcast:
		return 2
	case StatusConfirmed:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// Transaction is the ledger's persistent unit, keyed by hash.
type Transaction struct {
	Hash        string         `db:"hash"`
	Sender      string         `db:"sender"`
	Recipient   sql.NullString `db:"recipient"`
	ValueWei    string         `db:"value_wei"`
	Nonce       uint64         `db:"nonce"`
	ChainID     int64          `db:"chain_id"`
	Status      Status         `db:"status"`
	Raw         []byte         `db:"raw"`
	SubmittedAt sql.NullInt64  `db:"submitted_at"`
	UpdatedAt   int64          `db:"updated_at"`
}

// Account links an address to its keystore file on disk.
type Account struct {
	Address      string         `db:"address"`
	KeystorePath string         `db:"keystore_path"`
	Label        sql.NullString `db:"label"`
	CreatedAt    int64          `db:"created_at"`
}

// DuplicateHashError is returned when inserting a transaction whose hash
// already exists.
type DuplicateHashError struct {
	Hash string
}

func (e *DuplicateHashError) Error() string {
	return fmt.Sprintf("transaction %s already recorded", e.Hash)
}

// InvalidTransitionError is returned when a status update would move a
// record backward (or sideways) in the lifecycle.
type InvalidTransitionError struct {
	Hash string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transaction %s cannot move from %s to %s", e.Hash, e.From, e.To)
}
