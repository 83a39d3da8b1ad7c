package cmd

import (
	"os"

	"dwallet/cmd/account"
	"dwallet/cmd/db"
	"dwallet/cmd/status"
	"dwallet/cmd/withdraw"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dwallet",
	Short: "dwallet",
	Long: `dwallet

A local EVM withdrawal wallet: encrypted keystore accounts, EIP-1559
fee estimation and a SQLite ledger of every signed transaction.
Configured through ENV (DWALLET_* variables, optionally from .env).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// .env is optional; ENV always wins over it
	_ = godotenv.Load()

	// attach the subcommands
	rootCmd.AddCommand(
		account.New(),
		db.New(),
		status.New(),
		withdraw.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
