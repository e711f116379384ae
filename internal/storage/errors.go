package storage

import "errors"

var (
	// ErrAPIKeyNotFound is returned when an API key is not found
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrUsageNotFound is returned when a key has no usage row yet
	ErrUsageNotFound = errors.New("usage record not found")
)
