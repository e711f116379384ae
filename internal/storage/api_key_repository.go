package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"credgate/internal/models"
	"credgate/internal/utils"
)

// APIKeyRepository handles API key database operations. Reads go through
// the Redis record cache; every mutation invalidates the record's cache
// entry by hash.
type APIKeyRepository struct {
	db     *DB
	cache  *KeyCache
	logger *utils.Logger
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB, cache *KeyCache) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		cache:  cache,
		logger: utils.NewLogger("api-key-repo"),
	}
}

const apiKeyColumns = `
	id, user_id, key_hash, status, endpoints_allowed,
	rate_limit, daily_limit, monthly_limit, timezone, metadata,
	created_at, updated_at`

// GetByHash retrieves an API key record by the secret's hash (with caching).
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if r.cache != nil {
		if cached, found := r.cache.Get(ctx, keyHash); found {
			return cached, nil
		}
	}

	var key models.APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	err := r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.GetContext(ctx, &key, query, keyHash)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, &key)
	}

	return &key, nil
}

// GetByID retrieves an API key record by id. Not cached: the request path
// always resolves by hash.
func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	var key models.APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`

	err := r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.GetContext(ctx, &key, query, id)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	return &key, nil
}

// Create inserts a new API key record and fills in generated timestamps.
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	query := `
		INSERT INTO api_keys
			(id, user_id, key_hash, status, endpoints_allowed,
			 rate_limit, daily_limit, monthly_limit, timezone, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.QueryRowxContext(ctx, query,
			key.ID, key.UserID, key.KeyHash, key.Status, key.Scope,
			key.RateLimit, key.DailyLimit, key.MonthlyLimit, key.Timezone, key.Metadata,
		).Scan(&key.CreatedAt, &key.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// KeyPatch carries the optional fields of an administrative update.
// Nil fields are left untouched.
type KeyPatch struct {
	Status       *string
	Scope        []string
	RateLimit    *int
	DailyLimit   *int
	MonthlyLimit *int
	Timezone     *string
}

// UpdateByHash applies a partial update to the key identified by the
// secret's hash and returns the updated record. The cache entry is
// invalidated so the very next lookup observes the new record.
func (r *APIKeyRepository) UpdateByHash(ctx context.Context, keyHash string, patch KeyPatch) (*models.APIKey, error) {
	var key models.APIKey
	query := `
		UPDATE api_keys SET
			status            = COALESCE($2, status),
			endpoints_allowed = COALESCE($3, endpoints_allowed),
			rate_limit        = COALESCE($4, rate_limit),
			daily_limit       = COALESCE($5, daily_limit),
			monthly_limit     = COALESCE($6, monthly_limit),
			timezone          = COALESCE($7, timezone),
			updated_at        = NOW()
		WHERE key_hash = $1
		RETURNING ` + apiKeyColumns

	var scope pq.StringArray
	if patch.Scope != nil {
		scope = pq.StringArray(patch.Scope)
	}

	err := r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.GetContext(ctx, &key, query, keyHash,
			patch.Status, scope, patch.RateLimit, patch.DailyLimit,
			patch.MonthlyLimit, patch.Timezone)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to update API key: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, keyHash); err != nil {
			// The stale entry would otherwise serve old limits until the TTL.
			r.logger.Error("Cache invalidation failed after update", "key_id", key.ID, "error", err)
		}
	}

	return &key, nil
}

// List returns all key records, newest first.
func (r *APIKeyRepository) List(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at DESC`

	err := r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.SelectContext(ctx, &keys, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	return keys, nil
}

// ListTimezones returns the distinct IANA timezones across all keys,
// used by the reset scheduler to walk local day boundaries.
func (r *APIKeyRepository) ListTimezones(ctx context.Context) ([]string, error) {
	var timezones []string
	query := `SELECT DISTINCT timezone FROM api_keys`

	err := r.db.retry(ctx, func(ctx context.Context) error {
		return r.db.conn.SelectContext(ctx, &timezones, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list timezones: %w", err)
	}

	return timezones, nil
}
