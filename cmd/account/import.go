package account

import (
	"context"
	"fmt"
	"os"

	"dwallet/internal/util/command"
	"dwallet/internal/wallet"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newImport() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Imports a hex private key into the encrypted keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			label, _ := cmd.Flags().GetString(labelFlag)
			passwordValue, _ := cmd.Flags().GetString(passwordFlag)

			// the key never goes through argv or shell history
			fmt.Fprint(os.Stderr, "Private key (hex): ")
			keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return errors.Wrap(err, "failed to read private key")
			}

			password, err := resolvePassword(passwordValue)
			if err != nil {
				return err
			}

			return command.WithWallet(cmd.Context(), func(ctx context.Context, w *wallet.Wallet) error {
				address, err := w.Signer.ImportPrivateKey(ctx, string(keyBytes), password, label)
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
