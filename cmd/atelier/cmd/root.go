package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "atelier",
	Short: "Atelier is a portfolio and storefront backend",
	Long: `Backend for a personal portfolio and small digital-goods storefront.
Public reads are open; all administrative writes sit behind a TOTP-verified
session token.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
