package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"credgate/internal/models"
	"credgate/internal/storage"
)

var revokeHash string

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an API key by its hash",
	Long: `Mark an API key as revoked. The key stops authenticating immediately once
its cache entry expires or is invalidated; counters and logs are kept.`,
	RunE: runRevoke,
}

func init() {
	rootCmd.AddCommand(revokeCmd)
	revokeCmd.Flags().StringVar(&revokeHash, "hash", "", "SHA-256 hash of the key to revoke (required)")
	revokeCmd.MarkFlagRequired("hash")
}

func runRevoke(cmd *cobra.Command, args []string) error {
	db, err := connect()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	status := models.StatusRevoked
	repo := storage.NewAPIKeyRepository(db, nil)
	key, err := repo.UpdateByHash(context.Background(), revokeHash, storage.KeyPatch{Status: &status})
	if err != nil {
		if err == storage.ErrAPIKeyNotFound {
			return fmt.Errorf("no API key with that hash")
		}
		return fmt.Errorf("failed to revoke API key: %w", err)
	}

	fmt.Printf("Revoked key %s (user %s)\n", key.ID, key.UserID)
	return nil
}
