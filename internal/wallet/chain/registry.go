package chain

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Registry resolves chain identifiers (numeric ids, names, aliases) to
// canonical chain ids and knows the RPC endpoints for each chain. It is
// immutable once loaded.
type Registry struct {
	chains  map[int64]Chain
	mapping map[string]int64
}

// LoadRegistry reads the chain registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed to read chains file")
	}

	var raw struct {
		Chains []Chain `mapstructure:"chains"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse chains file")
	}
	if len(raw.Chains) == 0 {
		return nil, errors.Errorf("chains file %s defines no chains", path)
	}

	return NewRegistry(raw.Chains), nil
}

// NewRegistry builds a registry from an explicit chain list. Lookup keys
// are lowercased so resolution is case-insensitive.
func NewRegistry(chains []Chain) *Registry {
	r := &Registry{
		chains:  make(map[int64]Chain, len(chains)),
		mapping: make(map[string]int64),
	}
	for _, c := range chains {
		r.chains[c.ChainID] = c
		r.mapping[strconv.FormatInt(c.ChainID, 10)] = c.ChainID
		r.mapping[strings.ToLower(c.Name)] = c.ChainID
		for _, alias := range c.Aliases {
			r.mapping[strings.ToLower(alias)] = c.ChainID
		}
	}
	return r
}

// Resolve maps a chain identifier to its numeric chain id. It accepts a
// decimal id, a chain name or a configured alias, all case-insensitive
// and whitespace-trimmed.
func (r *Registry) Resolve(identifier string) (int64, error) {
	trimmed := strings.TrimSpace(identifier)
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return id, nil
	}
	if id, ok := r.mapping[strings.ToLower(trimmed)]; ok {
		return id, nil
	}
	return 0, &UnknownChainError{Identifier: identifier, Known: r.KnownIdentifiers()}
}

// EndpointFor returns the RPC URL to use for a chain. An environment
// override RPC_URL__<chainID> takes precedence over the registry's first
// configured URL.
func (r *Registry) EndpointFor(chainID int64) (string, error) {
	key := rpcEnvKey(chainID)
	if url := os.Getenv(key); url != "" {
		return url, nil
	}
	if c, ok := r.chains[chainID]; ok && len(c.RPC) > 0 {
		return c.RPC[0], nil
	}
	return "", &RPCNotConfiguredError{ChainID: chainID, EnvKey: key}
}

// Endpoints returns every RPC URL configured for a chain, with the
// environment override (if any) first.
func (r *Registry) Endpoints(chainID int64) ([]string, error) {
	var urls []string
	if url := os.Getenv(rpcEnvKey(chainID)); url != "" {
		urls = append(urls, url)
	}
	if c, ok := r.chains[chainID]; ok {
		urls = append(urls, c.RPC...)
	}
	if len(urls) == 0 {
		return nil, &RPCNotConfiguredError{ChainID: chainID, EnvKey: rpcEnvKey(chainID)}
	}
	return urls, nil
}

// Get returns the registry entry for a chain id.
func (r *Registry) Get(chainID int64) (Chain, bool) {
	c, ok := r.chains[chainID]
	return c, ok
}

// KnownIdentifiers lists all non-numeric identifiers (names and aliases),
// sorted, for error messages and CLI help.
func (r *Registry) KnownIdentifiers() []string {
	known := make([]string, 0, len(r.mapping))
	for k := range r.mapping {
		if _, err := strconv.ParseInt(k, 10, 64); err == nil {
			continue
		}
		known = append(known, k)
	}
	sort.Strings(known)
	return known
}

func rpcEnvKey(chainID int64) string {
	return fmt.Sprintf("RPC_URL__%d", chainID)
}
