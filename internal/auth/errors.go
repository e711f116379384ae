package auth

import "errors"

var (
	// ErrKeyNotFound is returned when no record matches the presented secret.
	ErrKeyNotFound = errors.New("API key not found")

	// ErrKeyInactive is returned for suspended or revoked keys. Callers must
	// surface it identically to ErrKeyNotFound so the lifecycle state never
	// leaks to an unauthenticated caller.
	ErrKeyInactive = errors.New("API key is not active")

	// ErrStoreUnavailable is returned when the durable store cannot answer,
	// as opposed to answering "no such key". The gateway maps it to a 503.
	ErrStoreUnavailable = errors.New("key store unavailable")
)
