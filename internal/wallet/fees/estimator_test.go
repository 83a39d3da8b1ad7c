package fees_test

import (
	"context"
	"math/big"
	"testing"

	"dwallet/internal/test"
	"dwallet/internal/wallet/chain"
	"dwallet/internal/wallet/fees"
	"dwallet/internal/wallet/rpc"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChainID int64 = 1337

func newFeeService(t *testing.T, node *test.EthNode) fees.Service {
	t.Helper()
	registry := chain.NewRegistry([]chain.Chain{
		{ChainID: testChainID, Name: "Testnet", RPC: []string{node.URL()}},
	})
	return fees.NewService(rpc.NewProvider(registry, zerolog.Nop()), fees.Config{}, zerolog.Nop())
}

func TestSuggestFeesFromNodeSuggestion(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.SetBaseFee(big.NewInt(1_000_000_000))
	node.SetTip(big.NewInt(2_000_000_000))

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	assert.False(t, quote.Legacy())
	assert.Equal(t, big.NewInt(1_000_000_000), quote.BaseFee)
	assert.Equal(t, big.NewInt(2_000_000_000), quote.PriorityFee)
	// maxFee = baseFee*2 + tip
	assert.Equal(t, big.NewInt(4_000_000_000), quote.MaxFee)
}

func TestSuggestFeesNeverBelowBasePlusTip(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.SetBaseFee(big.NewInt(37_000_000_000))
	node.SetTip(big.NewInt(1_500_000_000))

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	lower := new(big.Int).Add(quote.BaseFee, quote.PriorityFee)
	assert.True(t, quote.MaxFee.Cmp(lower) >= 0, "max fee %s below base+tip %s", quote.MaxFee, lower)
}

func TestSuggestFeesFallsBackToFeeHistory(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.FailMethod("eth_maxPriorityFeePerGas", "method not supported")
	node.SetFeeRewards([][]*big.Int{
		{big.NewInt(1_000_000_000)},
		{big.NewInt(2_000_000_000)},
		{big.NewInt(3_000_000_000)},
	})

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	// average of the median-percentile rewards
	assert.Equal(t, big.NewInt(2_000_000_000), quote.PriorityFee)
}

func TestSuggestFeesFallsBackToGasPriceSpread(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.FailMethod("eth_maxPriorityFeePerGas", "method not supported")
	node.FailMethod("eth_feeHistory", "method not supported")
	node.SetBaseFee(big.NewInt(1_000_000_000))
	node.SetGasPrice(big.NewInt(5_000_000_000))

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	// (gasPrice - baseFee) / 2
	assert.Equal(t, big.NewInt(2_000_000_000), quote.PriorityFee)
}

func TestSuggestFeesSpreadFloored(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.FailMethod("eth_maxPriorityFeePerGas", "method not supported")
	node.FailMethod("eth_feeHistory", "method not supported")
	node.SetBaseFee(big.NewInt(1_000_000_000))
	node.SetGasPrice(big.NewInt(1_000_000_001))

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	// spread collapses to ~0 and is floored at 0.1 gwei
	assert.Equal(t, big.NewInt(100_000_000), quote.PriorityFee)
}

func TestSuggestFeesFixedDefaultWhenAllStrategiesFail(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.FailMethod("eth_maxPriorityFeePerGas", "method not supported")
	node.FailMethod("eth_feeHistory", "method not supported")
	node.FailMethod("eth_gasPrice", "method not supported")
	node.SetBaseFee(big.NewInt(1_000_000_000))

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(2_000_000_000), quote.PriorityFee)
}

func TestSuggestFeesHintBypassesCascadeButIsClamped(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.SetBaseFee(big.NewInt(1_000_000_000))
	node.SetTip(big.NewInt(9_000_000_000))

	svc := newFeeService(t, node)

	quote, err := svc.SuggestFees(context.Background(), testChainID, big.NewInt(3_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3_000_000_000), quote.PriorityFee)

	// pathological hints are clamped into the safety band
	quote, err = svc.SuggestFees(context.Background(), testChainID, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000), quote.PriorityFee)

	quote, err = svc.SuggestFees(context.Background(), testChainID, new(big.Int).SetUint64(5_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000_000), quote.PriorityFee)
}

func TestSuggestFeesLegacyChain(t *testing.T) {
	node := test.StartEthNode(t, testChainID)
	node.SetBaseFee(nil)
	node.SetGasPrice(big.NewInt(7_000_000_000))

	quote, err := newFeeService(t, node).SuggestFees(context.Background(), testChainID, nil)
	require.NoError(t, err)

	assert.True(t, quote.Legacy())
	assert.Nil(t, quote.MaxFee)
	assert.Equal(t, big.NewInt(7_000_000_000), quote.GasPrice)
	assert.Zero(t, quote.PriorityFee.Sign())
}
