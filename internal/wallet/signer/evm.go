package signer

import (
	"crypto/ecdsa"
	"math/big"

	"dwallet/internal/wallet/builder"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// signEIP1559 signs a draft as a dynamic-fee (type 0x2) transaction and
// returns the RLP-encoded raw bytes plus the canonical hash.
func signEIP1559(draft *builder.Draft, privateKey *ecdsa.PrivateKey) (*SignedTx, error) {
	if draft.MaxFeePerGas == nil || draft.MaxPriorityFeePerGas == nil {
		return nil, errors.New("draft is missing fee parameters")
	}

	chainID := big.NewInt(draft.ChainID)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     draft.Nonce,
		GasTipCap: draft.MaxPriorityFeePerGas,
		GasFeeCap: draft.MaxFeePerGas,
		Gas:       draft.GasLimit,
		To:        draft.To,
		Value:     draft.Value,
		Data:      draft.Data,
	})

	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal signed transaction")
	}

	return &SignedTx{
		Raw:   raw,
		Hash:  signedTx.Hash(),
		Draft: draft,
	}, nil
}
