package account

import (
	"context"
	"fmt"

	"dwallet/internal/util/command"
	"dwallet/internal/wallet"

	"github.com/spf13/cobra"
)

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generates a new key and stores it in the encrypted keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			label, _ := cmd.Flags().GetString(labelFlag)
			passwordValue, _ := cmd.Flags().GetString(passwordFlag)

			password, err := resolvePassword(passwordValue)
			if err != nil {
				return err
			}

			return command.WithWallet(cmd.Context(), func(ctx context.Context, w *wallet.Wallet) error {
				address, err := w.Signer.CreateAccount(ctx, password, label)
				if err != nil {
					return err
				}
				fmt.Println(address)
				return nil
			})
		},
	}

	cmd.Flags().String(labelFlag, "", "Human-readable label for the account")
	cmd.Flags().String(passwordFlag, "", "Keystore password (prompted when omitted)")

	return cmd
}
