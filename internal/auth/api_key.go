package auth

import (
	"context"

	"credgate/internal/models"
)

// APIKeyRecord is the view of an API key needed at request time.
type APIKeyRecord struct {
	ID           string
	UserID       string
	Status       string
	Scope        []string
	RateLimit    int
	DailyLimit   int
	MonthlyLimit int
	Timezone     string
}

// Active reports whether the key may be served.
func (k *APIKeyRecord) Active() bool {
	return k.Status == models.StatusActive
}

// APIKeyStore resolves plaintext API keys into stored records.
type APIKeyStore interface {
	Lookup(ctx context.Context, plaintextKey string) (*APIKeyRecord, error)
}

// InMemoryAPIKeyStore is a map-backed store useful for tests and local runs.
type InMemoryAPIKeyStore struct {
	// map of hash(API key) -> record
	keys map[string]*APIKeyRecord
}

func NewInMemoryAPIKeyStore() *InMemoryAPIKeyStore {
	return &InMemoryAPIKeyStore{
		keys: make(map[string]*APIKeyRecord),
	}
}

// Add registers a record under the hash of the given plaintext key.
func (s *InMemoryAPIKeyStore) Add(plaintextKey string, record *APIKeyRecord) {
	s.keys[HashKey(plaintextKey)] = record
}

func (s *InMemoryAPIKeyStore) Lookup(ctx context.Context, plaintextKey string) (*APIKeyRecord, error) {
	rec, ok := s.keys[HashKey(plaintextKey)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return rec, nil
}
