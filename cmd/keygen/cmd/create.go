package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/spf13/cobra"

	"credgate/internal/auth"
	"credgate/internal/models"
	"credgate/internal/storage"
)

var (
	createUserID       string
	createScope        []string
	createRateLimit    int
	createDailyLimit   int
	createMonthlyLimit int
	createTimezone     string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key for a user",
	Long: `Generate a new cryptographically secure API key and store its hash.

The key will only be displayed once - save it securely!

Examples:
  keygen create --user-id=alice
  keygen create --user-id=bob --scope=/api/v1/search --daily-limit=10000
  keygen create --user-id=carol --timezone=Europe/Berlin --rate-limit=100`,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createUserID, "user-id", "", "User the key belongs to (required)")
	createCmd.Flags().StringSliceVar(&createScope, "scope", []string{models.ScopeAll}, "Allowed endpoint prefixes, or 'all'")
	createCmd.Flags().IntVar(&createRateLimit, "rate-limit", 1000, "Requests per minute, 0 = unlimited")
	createCmd.Flags().IntVar(&createDailyLimit, "daily-limit", 0, "Requests per local day, 0 = unlimited")
	createCmd.Flags().IntVar(&createMonthlyLimit, "monthly-limit", 0, "Requests per local month, 0 = unlimited")
	createCmd.Flags().StringVar(&createTimezone, "timezone", "UTC", "IANA timezone for quota boundaries")

	createCmd.MarkFlagRequired("user-id")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if _, err := time.LoadLocation(createTimezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", createTimezone, err)
	}

	scope := make([]string, 0, len(createScope))
	for _, entry := range createScope {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == models.ScopeAll {
			scope = []string{models.ScopeAll}
			break
		}
		scope = append(scope, entry)
	}
	if len(scope) == 0 {
		return fmt.Errorf("scope must contain at least one endpoint")
	}

	db, err := connect()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	plaintext, hash, err := auth.GenerateKey()
	if err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}

	apiKey := &models.APIKey{
		UserID:       createUserID,
		KeyHash:      hash,
		Status:       models.StatusActive,
		Scope:        pq.StringArray(scope),
		RateLimit:    createRateLimit,
		DailyLimit:   createDailyLimit,
		MonthlyLimit: createMonthlyLimit,
		Timezone:     createTimezone,
	}

	repo := storage.NewAPIKeyRepository(db, nil)
	if err := repo.Create(context.Background(), apiKey); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	fmt.Println()
	fmt.Println("API key created")
	fmt.Println()
	fmt.Printf("  Key:       %s\n", plaintext)
	fmt.Printf("  Key ID:    %s\n", apiKey.ID)
	fmt.Printf("  User:      %s\n", apiKey.UserID)
	fmt.Printf("  Scope:     %s\n", strings.Join(scope, ", "))
	fmt.Printf("  Timezone:  %s\n", apiKey.Timezone)
	fmt.Println()
	fmt.Println("Save this key securely - it won't be shown again.")

	return nil
}
