package chain

import (
	"fmt"
	"strings"
)

// Chain is one entry of the static chain registry.
type Chain struct {
	ChainID int64    `mapstructure:"chainId"`
	Name    string   `mapstructure:"name"`
	Aliases []string `mapstructure:"aliases"`
	RPC     []string `mapstructure:"rpc"`
}

// UnknownChainError is returned when an identifier matches neither a
// numeric chain id nor any configured name or alias.
type UnknownChainError struct {
	Identifier string
	Known      []string
}

func (e *UnknownChainError) Error() string {
	return fmt.Sprintf("unknown chain identifier %q, available options: %s",
		e.Identifier, strings.Join(e.Known, ", "))
}

// RPCNotConfiguredError is returned when neither the environment
// override nor the registry provides an RPC endpoint for a chain.
type RPCNotConfiguredError struct {
	ChainID int64
	EnvKey  string
}

func (e *RPCNotConfiguredError) Error() string {
	return fmt.Sprintf("no RPC endpoint for chain %d: set %s or configure rpc urls in the chains file",
		e.ChainID, e.EnvKey)
}
