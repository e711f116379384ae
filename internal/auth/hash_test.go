package auth

import "testing"

func TestHashKey_Deterministic(t *testing.T) {
	h1 := HashKey("some-secret")
	h2 := HashKey("some-secret")

	if h1 != h2 {
		t.Error("HashKey should be deterministic")
	}
	if len(h1) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(h1))
	}
	if h1 == HashKey("other-secret") {
		t.Error("Different secrets should not collide")
	}
}

func TestGenerateKey(t *testing.T) {
	plaintext, hash, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	if len(plaintext) != 64 {
		t.Errorf("Expected 64 hex characters of secret, got %d", len(plaintext))
	}
	if hash != HashKey(plaintext) {
		t.Error("Returned hash does not match the plaintext")
	}

	other, _, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if other == plaintext {
		t.Error("Two generated keys should never be equal")
	}
}
