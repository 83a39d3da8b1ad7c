package account

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"dwallet/internal/util/command"
	"dwallet/internal/wallet"

	"github.com/spf13/cobra"
)

func newList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists all keystore accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return command.WithWallet(cmd.Context(), func(ctx context.Context, w *wallet.Wallet) error {
				accounts, err := w.Ledger.ListAccounts(ctx)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ADDRESS\tLABEL\tCREATED")
				for _, account := range accounts {
					created := time.Unix(account.CreatedAt, 0).UTC().Format(time.RFC3339)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", account.Address, account.Label.String, created)
				}
				return tw.Flush()
			})
		},
	}
}
