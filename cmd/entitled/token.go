package main

import (
	"fmt"

	"github.com/artpar/entitled/adapters/hasher"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Admin token utilities",
}

var tokenHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Hash an admin token for admin.token_hash",
	Long: `Hash an admin API token with bcrypt.

Put the printed hash into admin.token_hash (or the
ENTITLED_ADMIN_TOKEN_HASH environment variable). The plaintext token
goes into Authorization: Bearer headers of admin requests and is never
stored anywhere.

Example:
  entitled token hash`,
	RunE: runTokenHash,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenHashCmd)
}

func runTokenHash(cmd *cobra.Command, args []string) error {
	fmt.Print("Token: ")
	raw, err := term.ReadPassword(0)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("token must not be empty")
	}

	h := hasher.NewBcrypt(0)
	hash, err := h.Hash(string(raw))
	if err != nil {
		return fmt.Errorf("hash token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}
