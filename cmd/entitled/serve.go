package main

import (
	"fmt"
	"os"

	"github.com/artpar/entitled/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the entitlement service",
	Long: `Start the entitled HTTP service.

The server will:
  - Load configuration from entitled.yaml (or --config)
  - Or load configuration from ENTITLED_* environment variables
  - Connect to the override store (sqlite, redis, or memory)
  - Serve access checks at /v1/access/check
  - Serve the admin override API at /v1/admin/overrides

Environment variables (for Docker deployments):
  ENTITLED_DATABASE_DRIVER  - Store backend: sqlite, redis, memory
  ENTITLED_DATABASE_DSN     - Store DSN (default: entitled.db)
  ENTITLED_SERVER_PORT      - Server port (default: 8080)
  ENTITLED_ADMIN_TOKEN_HASH - bcrypt hash of the admin bearer token
  ENTITLED_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  entitled serve
  entitled serve --config /etc/entitled/config.yaml

  # Docker (env vars only):
  ENTITLED_DATABASE_DRIVER=memory entitled serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if _, err := os.Stat(path); err != nil {
		path = ""
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(path)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
