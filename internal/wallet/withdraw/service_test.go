package withdraw_test

import (
	"context"
	"math/big"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"dwallet/internal/test"
	"dwallet/internal/wallet/broadcast"
	"dwallet/internal/wallet/builder"
	"dwallet/internal/wallet/chain"
	"dwallet/internal/wallet/fees"
	"dwallet/internal/wallet/ledger"
	"dwallet/internal/wallet/rpc"
	"dwallet/internal/wallet/signer"
	"dwallet/internal/wallet/withdraw"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChainID  int64 = 1337
	testPassword       = "correct horse battery staple"
	recipient          = "0x000000000000000000000000000000000000dEaD"
)

type env struct {
	node    *test.EthNode
	service withdraw.Service
	ledger  ledger.Service
	address string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	node := test.StartEthNode(t, testChainID)

	registry := chain.NewRegistry([]chain.Chain{
		{ChainID: testChainID, Name: "Testnet", RPC: []string{node.URL()}},
	})
	provider := rpc.NewProvider(registry, zerolog.Nop())
	t.Cleanup(provider.Close)

	ledgerService, err := ledger.NewService(filepath.Join(dir, "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledgerService.Close() })

	signerService, err := signer.NewService(ledgerService, signer.Config{
		KeystoreDir: filepath.Join(dir, "keystore"),
		ScryptN:     keystore.LightScryptN,
		ScryptP:     keystore.LightScryptP,
	}, zerolog.Nop())
	require.NoError(t, err)

	feeService := fees.NewService(provider, fees.Config{}, zerolog.Nop())
	service := withdraw.NewService(
		builder.NewService(provider, feeService, zerolog.Nop()),
		feeService,
		signerService,
		ledgerService,
		broadcast.NewService(provider, zerolog.Nop()),
		provider,
		zerolog.Nop(),
	)

	address, err := signerService.CreateAccount(context.Background(), testPassword, "hot")
	require.NoError(t, err)

	// plenty of funds by default; individual tests override
	node.SetBalance(common.HexToAddress(address), big.NewInt(1_000_000_000_000_000_000))

	return &env{node: node, service: service, ledger: ledgerService, address: address}
}

func (e *env) request(value *big.Int) *withdraw.Request {
	return &withdraw.Request{
		ChainID:  testChainID,
		From:     e.address,
		To:       recipient,
		ValueWei: value,
		Password: testPassword,
	}
}

func TestWithdrawBroadcastsAndConfirms(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.service.Withdraw(ctx, e.request(big.NewInt(100_000_000_000_000)))
	require.NoError(t, err)
	require.NotEmpty(t, result.Raw)
	require.NotNil(t, result.Draft)

	// the node accepted exactly this transaction
	sent := e.node.SentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, result.Hash, sent[0].Hash())

	record, err := e.ledger.GetTransaction(ctx, result.Hash.Hex())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, ledger.StatusBroadcast, record.Status)
	assert.Equal(t, "100000000000000", record.ValueWei)
	assert.True(t, record.SubmittedAt.Valid)

	receipt, err := e.service.AwaitConfirmation(ctx, testChainID, result.Hash, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	record, err = e.ledger.GetTransaction(ctx, result.Hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, record.Status)
}

func TestAwaitConfirmationIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	result, err := e.service.Withdraw(ctx, e.request(big.NewInt(100_000_000_000_000)))
	require.NoError(t, err)

	// a second wait on an already confirmed transaction must return the
	// receipt again, not trip over the ledger's monotonic guard
	for i := 0; i < 2; i++ {
		receipt, err := e.service.AwaitConfirmation(ctx, testChainID, result.Hash, 5*time.Second, 10*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, receipt)
		assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	}

	record, err := e.ledger.GetTransaction(ctx, result.Hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, record.Status)
}

func TestWithdrawNodeReportedHashMovesRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	nodeHash := common.HexToHash("0xcccc567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef")
	e.node.OverrideSendHash(nodeHash)

	result, err := e.service.Withdraw(ctx, e.request(big.NewInt(100_000_000_000_000)))
	require.NoError(t, err)
	assert.Equal(t, nodeHash, result.Hash)

	// the record now lives under the node's hash only
	record, err := e.ledger.GetTransaction(ctx, nodeHash.Hex())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, ledger.StatusBroadcast, record.Status)

	signedHash := e.node.SentTransactions()[0].Hash()
	stale, err := e.ledger.GetTransaction(ctx, signedHash.Hex())
	require.NoError(t, err)
	assert.Nil(t, stale)

	// confirmation keys off the node hash as well
	receipt, err := e.service.AwaitConfirmation(ctx, testChainID, nodeHash, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	record, err = e.ledger.GetTransaction(ctx, nodeHash.Hex())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, record.Status)
}

func TestWithdrawWithWaitAttachesReceipt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req := e.request(big.NewInt(100_000_000_000_000))
	req.Wait = true
	req.WaitTimeout = 5 * time.Second
	req.PollInterval = 10 * time.Millisecond

	result, err := e.service.Withdraw(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, result.Receipt)

	record, err := e.ledger.GetTransaction(ctx, result.Hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, record.Status)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// just below value + gasLimit * maxFee
	e.node.SetBalance(common.HexToAddress(e.address), big.NewInt(100_000_000_000_000))

	_, err := e.service.Withdraw(ctx, e.request(big.NewInt(100_000_000_000_000)))

	var insufficient *withdraw.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, big.NewInt(100_000_000_000_000), insufficient.Balance)
	assert.Positive(t, insufficient.Required.Cmp(insufficient.Balance))

	// nothing was signed or recorded
	assert.Empty(t, e.node.SentTransactions())
	_, ok, err := e.ledger.MaxKnownNonce(ctx, e.address, testChainID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithdrawExactBalanceAccepted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	value := big.NewInt(100_000_000_000_000)
	// default fees: baseFee 1 gwei, tip 2 gwei -> maxFee 4 gwei;
	// default estimate 21000 -> gas limit 31500
	gasCost := new(big.Int).Mul(big.NewInt(31500), big.NewInt(4_000_000_000))
	e.node.SetBalance(common.HexToAddress(e.address), new(big.Int).Add(value, gasCost))

	_, err := e.service.Withdraw(ctx, e.request(value))
	require.NoError(t, err)
}

func TestWithdrawWrongPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	req := e.request(big.NewInt(100_000_000_000_000))
	req.Password = "wrong password"

	_, err := e.service.Withdraw(ctx, req)
	require.ErrorIs(t, err, signer.ErrBadPassword)

	// aborts before any ledger write
	_, ok, err := e.ledger.MaxKnownNonce(ctx, e.address, testChainID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWithdrawBroadcastFailureKeepsSignedRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.node.FailMethod("eth_sendRawTransaction", "replacement transaction underpriced")

	_, err := e.service.Withdraw(ctx, e.request(big.NewInt(100_000_000_000_000)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replacement transaction underpriced")

	// the SIGNED record survives for manual reconciliation
	hash := regexp.MustCompile(`0x[0-9a-f]{64}`).FindString(err.Error())
	require.NotEmpty(t, hash)

	record, getErr := e.ledger.GetTransaction(ctx, hash)
	require.NoError(t, getErr)
	require.NotNil(t, record)
	assert.Equal(t, ledger.StatusSigned, record.Status)
	assert.NotEmpty(t, record.Raw)
	assert.False(t, record.SubmittedAt.Valid)
}

func TestWithdrawTimeoutLeavesRecordBroadcast(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.node.MineOnSend = false

	req := e.request(big.NewInt(100_000_000_000_000))
	req.Wait = true
	req.WaitTimeout = 200 * time.Millisecond
	req.PollInterval = 20 * time.Millisecond

	result, err := e.service.Withdraw(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, result.Receipt, "still pending is not an error")

	record, err := e.ledger.GetTransaction(ctx, result.Hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusBroadcast, record.Status)
}

func TestConcurrentWithdrawalsGetDistinctNonces(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*withdraw.Result, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.service.Withdraw(ctx, e.request(big.NewInt(1_000_000)))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// the per-(sender, chain) lock serializes nonce acquisition
	nonces := map[uint64]bool{
		results[0].Draft.Nonce: true,
		results[1].Draft.Nonce: true,
	}
	assert.Len(t, nonces, 2, "both withdrawals acquired the same nonce")

	maxNonce, ok, err := e.ledger.MaxKnownNonce(ctx, e.address, testChainID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), maxNonce)
}
