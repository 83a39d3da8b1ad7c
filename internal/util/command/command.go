package command

import (
	"context"

	"dwallet/internal/config"
	"dwallet/internal/wallet"

	"github.com/spf13/cobra"
)

// NewSubcommandGroup returns a group command that only dispatches to
// its subcommands, printing help when called bare.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(subcommands...)
	return cmd
}

// WithWallet builds the service stack from the environment, runs fn and
// tears the stack down again. Subcommands use it as their RunE body.
func WithWallet(ctx context.Context, fn func(ctx context.Context, w *wallet.Wallet) error) error {
	w, err := wallet.New(config.DefaultServiceConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	return fn(ctx, w)
}
