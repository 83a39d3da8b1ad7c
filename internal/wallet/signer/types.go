package signer

import (
	"context"

	"dwallet/internal/wallet/builder"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Service turns unsigned drafts into signed raw transactions using
// keystore files unlocked by password. The private key never leaves
// this package.
type Service interface {
	// SignWithdrawal signs an EIP-1559 draft with the key of its From
	// address.
	SignWithdrawal(ctx context.Context, draft *builder.Draft, password string) (*SignedTx, error)

	// CreateAccount generates a fresh key, writes its keystore file and
	// records the account in the ledger. Returns the checksummed address.
	CreateAccount(ctx context.Context, password, label string) (string, error)

	// ImportPrivateKey imports a hex-encoded private key the same way.
	ImportPrivateKey(ctx context.Context, privateKeyHex, password, label string) (string, error)
}

// SignedTx is the result of signing a draft. Hash is derived from the
// signed byte encoding.
type SignedTx struct {
	Raw   []byte
	Hash  common.Hash
	Draft *builder.Draft
}

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrKeystoreMissing = errors.New("keystore file missing")
	ErrBadPassword     = errors.New("could not decrypt key with given password")
	ErrAddressMismatch = errors.New("keystore key does not match the from address")

	errPasswordTooShort = errors.New("password too short (min 8 chars)")
)
