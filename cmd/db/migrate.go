package db

import (
	"context"

	"dwallet/internal/util/command"
	"dwallet/internal/wallet"

	"github.com/spf13/cobra"
)

func newMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates the ledger database and applies the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.WithWallet(cmd.Context(), func(_ context.Context, w *wallet.Wallet) error {
				// opening the ledger applies the schema idempotently
				w.Logger.Info().
					Str("path", w.Config.DatabasePath).
					Msg("Ledger database is ready")
				return nil
			})
		},
	}
}
