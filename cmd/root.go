package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "mm-oracle",
	Short: "Market making campaign oracle",
	Long: `Market making campaign oracle: reads participants' trades and balances
from centralized and decentralized exchanges through their own API keys or
wallets, and turns campaign results into reward payouts.

Configuration is read from the environment and from a .env file in the
working directory.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
