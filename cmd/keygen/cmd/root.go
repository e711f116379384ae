package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"credgate/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "keygen",
	Short: "API key management CLI for the credential search gateway",
	Long: `keygen manages API keys for the credential search gateway.

Keys are stored as SHA-256 hashes in PostgreSQL. The plaintext key is only
shown once during creation and cannot be recovered later.

Environment Variables:
  DATABASE_URL - PostgreSQL connection string (required)`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func connect() (*storage.DB, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg := storage.DefaultDBConfig()
	cfg.DSN = dbURL
	return storage.NewDB(cfg)
}
