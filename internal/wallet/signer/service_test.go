package signer_test

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"dwallet/internal/wallet/builder"
	"dwallet/internal/wallet/ledger"
	"dwallet/internal/wallet/signer"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery staple"

func newSigner(t *testing.T) (signer.Service, ledger.Service) {
	t.Helper()
	dir := t.TempDir()

	ledgerService, err := ledger.NewService(filepath.Join(dir, "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledgerService.Close() })

	svc, err := signer.NewService(ledgerService, signer.Config{
		KeystoreDir: filepath.Join(dir, "keystore"),
		ScryptN:     keystore.LightScryptN,
		ScryptP:     keystore.LightScryptP,
	}, zerolog.Nop())
	require.NoError(t, err)
	return svc, ledgerService
}

func testDraft(from common.Address) *builder.Draft {
	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	return &builder.Draft{
		From:                 from,
		To:                   &to,
		Value:                big.NewInt(100_000_000_000_000),
		ChainID:              8453,
		Nonce:                3,
		GasLimit:             21000,
		MaxFeePerGas:         big.NewInt(4_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	}
}

func TestCreateAccountAndSign(t *testing.T) {
	svc, ledgerService := newSigner(t)
	ctx := context.Background()

	address, err := svc.CreateAccount(ctx, testPassword, "hot")
	require.NoError(t, err)

	account, err := ledgerService.GetAccount(ctx, address)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.FileExists(t, account.KeystorePath)

	draft := testDraft(common.HexToAddress(address))
	signed, err := svc.SignWithdrawal(ctx, draft, testPassword)
	require.NoError(t, err)

	require.NotEmpty(t, signed.Raw)
	assert.Equal(t, draft, signed.Draft)

	// the raw bytes decode back to a dynamic-fee tx signed by the account
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(signed.Raw))
	assert.Equal(t, signed.Hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(3), tx.Nonce())

	sender, err := types.Sender(types.NewLondonSigner(big.NewInt(8453)), &tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(address), sender)
}

func TestSignWithdrawalWrongPassword(t *testing.T) {
	svc, _ := newSigner(t)
	ctx := context.Background()

	address, err := svc.CreateAccount(ctx, testPassword, "")
	require.NoError(t, err)

	_, err = svc.SignWithdrawal(ctx, testDraft(common.HexToAddress(address)), "wrong password")
	require.ErrorIs(t, err, signer.ErrBadPassword)
}

func TestSignWithdrawalUnknownAccount(t *testing.T) {
	svc, _ := newSigner(t)

	draft := testDraft(common.HexToAddress("0x8ba1f109551bd432803012645ac136ddd64dba72"))
	_, err := svc.SignWithdrawal(context.Background(), draft, testPassword)
	require.ErrorIs(t, err, signer.ErrAccountNotFound)
}

func TestSignWithdrawalAddressMismatch(t *testing.T) {
	svc, ledgerService := newSigner(t)
	ctx := context.Background()

	address, err := svc.CreateAccount(ctx, testPassword, "")
	require.NoError(t, err)

	// point another address at the same keystore file
	account, err := ledgerService.GetAccount(ctx, address)
	require.NoError(t, err)
	other := "0x1111111111111111111111111111111111111111"
	require.NoError(t, ledgerService.InsertAccount(ctx, &ledger.Account{
		Address:      other,
		KeystorePath: account.KeystorePath,
	}))

	_, err = svc.SignWithdrawal(ctx, testDraft(common.HexToAddress(other)), testPassword)
	require.ErrorIs(t, err, signer.ErrAddressMismatch)
}

func TestImportPrivateKey(t *testing.T) {
	svc, _ := newSigner(t)
	ctx := context.Background()

	// well-known test vector key
	address, err := svc.ImportPrivateKey(ctx,
		"0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		testPassword, "imported")
	require.NoError(t, err)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", address)

	signed, err := svc.SignWithdrawal(ctx, testDraft(common.HexToAddress(address)), testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Raw)
}

func TestCreateAccountPasswordTooShort(t *testing.T) {
	svc, _ := newSigner(t)

	_, err := svc.CreateAccount(context.Background(), "short", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password too short")
}
