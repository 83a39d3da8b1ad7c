package rpc

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Client wraps an Ethereum RPC client with support for multiple URLs and
// failover. Endpoints are dialed lazily and health-checked on use; when
// the current endpoint fails, the next one is tried.
type Client struct {
	urls    []string
	logger  zerolog.Logger
	mu      sync.Mutex
	clients []*ethclient.Client
	current int
}

// NewClient creates a client over an ordered list of RPC URLs. No
// connection is attempted until the first call.
func NewClient(urls []string, logger zerolog.Logger) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}
	return &Client{
		urls:    urls,
		logger:  logger,
		clients: make([]*ethclient.Client, len(urls)),
	}, nil
}

// Close closes all dialed connections.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, client := range c.clients {
		if client != nil {
			client.Close()
			c.clients[i] = nil
		}
	}
}

// PendingNonceAt returns the remote node's pending nonce for an address.
func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return 0, err
	}
	nonce, err := client.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get pending nonce")
	}
	return nonce, nil
}

// SuggestGasTipCap asks the node for a recommended priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to suggest gas tip cap")
	}
	return tip, nil
}

// FeeHistory returns reward percentiles for the last blockCount blocks.
func (c *Client) FeeHistory(ctx context.Context, blockCount uint64, percentiles []float64) (*ethereum.FeeHistory, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	history, err := client.FeeHistory(ctx, blockCount, nil, percentiles)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get fee history")
	}
	return history, nil
}

// GasPrice returns the node's current gas price suggestion.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}
	return price, nil
}

// LatestHeader returns the most recent block header.
func (c *Client) LatestHeader(ctx context.Context) (*types.Header, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest header")
	}
	return header, nil
}

// EstimateGas runs the node's gas estimation for a call message.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return 0, err
	}
	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, errors.Wrap(err, "failed to estimate gas")
	}
	return gas, nil
}

// BalanceAt returns the balance of an address at the latest known block.
func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	return balance, nil
}

// SendRawTransaction submits signed raw bytes and returns the hash the
// node reports back. Node-side validation errors (nonce too low,
// replacement underpriced, ...) are passed through unmodified.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := client.Client().CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionReceipt returns the receipt for a transaction hash. A
// transaction the node does not know yet yields ethereum.NotFound.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, hash)
}

// getClient returns a healthy client, dialing and rotating through the
// configured URLs as needed.
func (c *Client) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(c.clients); i++ {
		idx := (c.current + i) % len(c.clients)

		if c.clients[idx] == nil {
			client, err := ethclient.DialContext(ctx, c.urls[idx])
			if err != nil {
				c.logger.Warn().Str("url", c.urls[idx]).Err(err).Msg("Failed to dial RPC node")
				continue
			}
			c.clients[idx] = client
		}

		if _, err := c.clients[idx].ChainID(ctx); err != nil {
			c.logger.Warn().Str("url", c.urls[idx]).Err(err).Msg("RPC node health check failed")
			c.clients[idx].Close()
			c.clients[idx] = nil
			continue
		}

		c.current = idx
		return c.clients[idx], nil
	}

	return nil, errors.New("all RPC endpoints are unavailable")
}
