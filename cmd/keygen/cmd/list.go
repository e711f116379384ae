package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"credgate/internal/storage"
)

var listUserID string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listUserID, "user-id", "", "Only show keys for this user")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := connect()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	repo := storage.NewAPIKeyRepository(db, nil)
	keys, err := repo.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}

	fmt.Printf("%-36s  %-12s  %-10s  %-8s  %-8s  %s\n",
		"ID", "USER", "STATUS", "RATE", "DAILY", "SCOPE")
	for _, key := range keys {
		if listUserID != "" && key.UserID != listUserID {
			continue
		}
		fmt.Printf("%-36s  %-12s  %-10s  %-8d  %-8d  %s\n",
			key.ID, key.UserID, key.Status, key.RateLimit, key.DailyLimit,
			strings.Join(key.Scope, ","))
	}

	return nil
}
