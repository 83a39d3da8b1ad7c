package withdraw

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"dwallet/internal/util"
	"dwallet/internal/util/command"
	"dwallet/internal/wallet"
	"dwallet/internal/wallet/withdraw"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	chainFlag       = "chain"
	fromFlag        = "from"
	toFlag          = "to"
	amountFlag      = "amount"
	unitFlag        = "unit"
	priorityFeeFlag = "priority-fee"
	gasLimitFlag    = "gas-limit"
	waitFlag        = "wait"
	timeoutFlag     = "timeout"
	pollFlag        = "poll"
	passwordFlag    = "password"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Signs, records and broadcasts a withdrawal",
		RunE:  run,
	}

	cmd.Flags().String(chainFlag, "", "Chain name, alias or numeric chain ID")
	cmd.Flags().String(fromFlag, "", "Sender address (must be a keystore account)")
	cmd.Flags().String(toFlag, "", "Recipient address")
	cmd.Flags().String(amountFlag, "", "Amount to send, in --unit")
	cmd.Flags().String(unitFlag, "wei", "Amount unit: wei, gwei or ether")
	cmd.Flags().String(priorityFeeFlag, "", "Priority fee in gwei (estimated when omitted)")
	cmd.Flags().Uint64(gasLimitFlag, 0, "Gas limit (estimated when omitted)")
	cmd.Flags().Bool(waitFlag, false, "Wait for the confirmation receipt")
	cmd.Flags().Duration(timeoutFlag, 0, "Receipt wait timeout (config default when omitted)")
	cmd.Flags().Duration(pollFlag, 0, "Receipt poll interval (config default when omitted)")
	cmd.Flags().String(passwordFlag, "", "Keystore password (prompted when omitted)")

	for _, flag := range []string{chainFlag, fromFlag, toFlag, amountFlag} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	chainIdentifier, _ := cmd.Flags().GetString(chainFlag)
	from, _ := cmd.Flags().GetString(fromFlag)
	to, _ := cmd.Flags().GetString(toFlag)
	amount, _ := cmd.Flags().GetString(amountFlag)
	unit, _ := cmd.Flags().GetString(unitFlag)
	priorityFee, _ := cmd.Flags().GetString(priorityFeeFlag)
	gasLimit, _ := cmd.Flags().GetUint64(gasLimitFlag)
	wait, _ := cmd.Flags().GetBool(waitFlag)
	timeout, _ := cmd.Flags().GetDuration(timeoutFlag)
	poll, _ := cmd.Flags().GetDuration(pollFlag)
	passwordValue, _ := cmd.Flags().GetString(passwordFlag)

	value, err := util.ParseAmount(amount, unit)
	if err != nil {
		return err
	}

	var hint *big.Int
	if priorityFee != "" {
		hint, err = util.ParseAmount(priorityFee, "gwei")
		if err != nil {
			return errors.Wrap(err, "invalid priority fee")
		}
	}

	password := passwordValue
	if password == "" {
		fmt.Fprint(os.Stderr, "Keystore password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return errors.Wrap(err, "failed to read password")
		}
		password = string(raw)
	}

	return command.WithWallet(cmd.Context(), func(ctx context.Context, w *wallet.Wallet) error {
		chainID, err := w.Registry.Resolve(chainIdentifier)
		if err != nil {
			return err
		}

		if timeout <= 0 {
			timeout = w.Config.ReceiptTimeout
		}
		if poll <= 0 {
			poll = w.Config.PollInterval
		}

		result, err := w.Withdraw.Withdraw(ctx, &withdraw.Request{
			ChainID:         chainID,
			From:            from,
			To:              to,
			ValueWei:        value,
			Password:        password,
			PriorityFeeHint: hint,
			GasLimit:        gasLimit,
			Wait:            wait,
			WaitTimeout:     timeout,
			PollInterval:    poll,
		})
		if err != nil {
			return err
		}

		fmt.Printf("hash:   %s\n", result.Hash.Hex())
		fmt.Printf("nonce:  %d\n", result.Draft.Nonce)
		fmt.Printf("value:  %s ether\n", util.FormatWei(value))

		switch {
		case result.Receipt != nil:
			fmt.Printf("status: confirmed in block %s\n", result.Receipt.BlockNumber)
		case wait:
			fmt.Printf("status: broadcast, no receipt within %s\n", timeout)
		default:
			fmt.Println("status: broadcast")
		}
		return nil
	})
}
