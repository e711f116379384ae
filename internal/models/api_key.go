package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// API key lifecycle states. Only active keys are served.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusRevoked   = "revoked"
)

// ScopeAll is the sentinel scope entry that allows every endpoint.
const ScopeAll = "all"

// APIKey is a stored API key record. The plaintext secret is never stored;
// KeyHash holds its SHA-256 and is the lookup key everywhere.
type APIKey struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	KeyHash      string         `db:"key_hash" json:"key_hash"`
	Status       string         `db:"status" json:"status"`
	Scope        pq.StringArray `db:"endpoints_allowed" json:"endpoints_allowed"`
	RateLimit    int            `db:"rate_limit" json:"rate_limit"`       // requests per window, 0 = unlimited
	DailyLimit   int            `db:"daily_limit" json:"daily_limit"`     // 0 = unlimited
	MonthlyLimit int            `db:"monthly_limit" json:"monthly_limit"` // 0 = unlimited
	Timezone     string         `db:"timezone" json:"timezone"`           // IANA name defining this key's local day/month
	Metadata     JSONB          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the key may be served at all.
func (k *APIKey) IsActive() bool {
	return k.Status == StatusActive
}

// AllowsAll reports whether the key's scope contains the "all" sentinel.
func (k *APIKey) AllowsAll() bool {
	for _, entry := range k.Scope {
		if entry == ScopeAll {
			return true
		}
	}
	return false
}
