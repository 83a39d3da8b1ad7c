package rpc

import (
	"sync"

	"dwallet/internal/wallet/chain"

	"github.com/rs/zerolog"
)

// Provider hands out one shared Client per chain id, resolving endpoints
// through the chain registry.
type Provider struct {
	registry *chain.Registry
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewProvider creates a provider over the given registry.
func NewProvider(registry *chain.Registry, logger zerolog.Logger) *Provider {
	return &Provider{
		registry: registry,
		logger:   logger,
		clients:  make(map[int64]*Client),
	}
}

// ClientFor returns the client for a chain id, creating it on first use.
func (p *Provider) ClientFor(chainID int64) (*Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[chainID]; ok {
		return client, nil
	}

	urls, err := p.registry.Endpoints(chainID)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(urls, p.logger.With().Int64("chain_id", chainID).Logger())
	if err != nil {
		return nil, err
	}
	p.clients[chainID] = client
	return client, nil
}

// Close closes every client the provider has created.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, client := range p.clients {
		client.Close()
	}
	p.clients = make(map[int64]*Client)
}
