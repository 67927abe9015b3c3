package main

import (
	"fmt"
	"os"

	"github.com/artpar/entitled/adapters/sqlite"
	"github.com/artpar/entitled/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the entitled configuration file.

Checks:
  - YAML syntax is valid
  - Database driver and DSN are usable
  - Every feature requirement names a known tier
  - Tier price overrides stay inside the closed tier set
  - Database is writable (optional)

Examples:
  entitled validate
  entitled validate --config /etc/entitled/config.yaml`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	if _, err := cfg.Catalog(); err != nil {
		fmt.Printf("  %s Tier catalog valid\n", crossMark)
		return fmt.Errorf("catalog error: %w", err)
	}
	fmt.Printf("  %s Tier catalog valid\n", checkMark)

	table, err := cfg.FeatureTable()
	if err != nil {
		fmt.Printf("  %s Feature table valid\n", crossMark)
		return fmt.Errorf("feature table error: %w", err)
	}
	fmt.Printf("  %s Feature table valid\n", checkMark)

	fmt.Printf("  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Printf("  %s Features configured: %d\n", checkMark, table.Len())
	if cfg.Admin.TokenHash == "" {
		fmt.Printf("  - Admin API disabled (no admin.token_hash)\n")
	} else {
		fmt.Printf("  %s Admin API enabled\n", checkMark)
	}

	if validateCheckDatabase && cfg.Database.Driver == "sqlite" {
		if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
