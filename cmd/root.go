/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "accounts",
	Short: "LionSwap identity & accounts service",
	Long: `LionSwap identity & accounts service.

Manages user records, Google OAuth2 sign-in, and the composite
cross-service deletion workflow spanning the identity and catalog
stores.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
