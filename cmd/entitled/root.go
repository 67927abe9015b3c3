package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "entitled",
	Short: "Feature entitlement service with tiers and per-user overrides",
	Long: `Entitled decides which users may use which features.

Access is resolved from a ranked subscription tier (free, pro, elite),
a per-feature requirement table, and per-user overrides that win in
both directions and can expire.

Quick start:
  entitled serve              # Start the HTTP service
  entitled validate           # Validate configuration

Management:
  entitled overrides grant    # Grant a feature to a user
  entitled overrides deny     # Deny a feature to a user
  entitled overrides list     # Show a user's overrides
  entitled token hash         # Hash an admin API token for config`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "entitled.yaml", "config file path")
}
