package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns the SHA-256 hex digest of a plaintext API key. The digest
// is the only form ever stored, logged or used as a lookup key.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// GenerateKey mints a new plaintext secret and its hash. The plaintext is
// shown to the caller exactly once at creation time.
func GenerateKey() (plaintext, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(bytes)
	return plaintext, HashKey(plaintext), nil
}
