package status

import (
	"context"
	"fmt"
	"time"

	"dwallet/internal/util/command"
	"dwallet/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	waitFlag    = "wait"
	timeoutFlag = "timeout"
	pollFlag    = "poll"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <hash>",
		Short: "Shows the ledger record for a transaction",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	cmd.Flags().Bool(waitFlag, false, "Re-poll for the confirmation receipt")
	cmd.Flags().Duration(timeoutFlag, 0, "Receipt wait timeout (config default when omitted)")
	cmd.Flags().Duration(pollFlag, 0, "Receipt poll interval (config default when omitted)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	hash := args[0]
	wait, _ := cmd.Flags().GetBool(waitFlag)
	timeout, _ := cmd.Flags().GetDuration(timeoutFlag)
	poll, _ := cmd.Flags().GetDuration(pollFlag)

	return command.WithWallet(cmd.Context(), func(ctx context.Context, w *wallet.Wallet) error {
		record, err := w.Ledger.GetTransaction(ctx, hash)
		if err != nil {
			return err
		}
		if record == nil {
			return errors.Errorf("transaction %s is not in the ledger", hash)
		}

		if wait {
			if timeout <= 0 {
				timeout = w.Config.ReceiptTimeout
			}
			if poll <= 0 {
				poll = w.Config.PollInterval
			}

			receipt, err := w.Withdraw.AwaitConfirmation(ctx, record.ChainID, common.HexToHash(record.Hash), timeout, poll)
			if err != nil {
				return err
			}
			if receipt != nil {
				// re-read so the printout reflects the upgrade
				record, err = w.Ledger.GetTransaction(ctx, hash)
				if err != nil {
					return err
				}
			}
		}

		fmt.Printf("hash:      %s\n", record.Hash)
		fmt.Printf("chain:     %d\n", record.ChainID)
		fmt.Printf("sender:    %s\n", record.Sender)
		if record.Recipient.Valid {
			fmt.Printf("recipient: %s\n", record.Recipient.String)
		} else {
			fmt.Println("recipient: (contract creation)")
		}
		fmt.Printf("value:     %s wei\n", record.ValueWei)
		fmt.Printf("nonce:     %d\n", record.Nonce)
		fmt.Printf("status:    %s\n", record.Status)
		if record.SubmittedAt.Valid {
			fmt.Printf("submitted: %s\n", time.Unix(record.SubmittedAt.Int64, 0).UTC().Format(time.RFC3339))
		}
		fmt.Printf("updated:   %s\n", time.Unix(record.UpdatedAt, 0).UTC().Format(time.RFC3339))
		return nil
	})
}
