package httpapi

import (
	"context"
	"errors"

	"credgate/internal/auth"
	"credgate/internal/storage"
)

// DatabaseAPIKeyStore implements auth.APIKeyStore using the database repository
type DatabaseAPIKeyStore struct {
	repo *storage.APIKeyRepository
}

// NewDatabaseAPIKeyStore creates a new database-backed API key store
func NewDatabaseAPIKeyStore(repo *storage.APIKeyRepository) *DatabaseAPIKeyStore {
	return &DatabaseAPIKeyStore{
		repo: repo,
	}
}

// Lookup finds an API key by its plaintext value and returns an
// auth.APIKeyRecord. Revoked and suspended keys come back as
// auth.ErrKeyInactive; the middleware reports both identically to not-found.
func (s *DatabaseAPIKeyStore) Lookup(ctx context.Context, plaintextKey string) (*auth.APIKeyRecord, error) {
	hashedKey := auth.HashKey(plaintextKey)

	apiKey, err := s.repo.GetByHash(ctx, hashedKey)
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, auth.ErrStoreUnavailable
	}

	record := &auth.APIKeyRecord{
		ID:           apiKey.ID.String(),
		UserID:       apiKey.UserID,
		Status:       apiKey.Status,
		Scope:        apiKey.Scope,
		RateLimit:    apiKey.RateLimit,
		DailyLimit:   apiKey.DailyLimit,
		MonthlyLimit: apiKey.MonthlyLimit,
		Timezone:     apiKey.Timezone,
	}

	if !record.Active() {
		return nil, auth.ErrKeyInactive
	}

	return record, nil
}
