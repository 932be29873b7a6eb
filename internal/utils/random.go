package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the entropy of every generated token: 32 bytes = 256 bits.
const TokenBytes = 32

// RandomToken returns a base64url (unpadded) string of TokenBytes random bytes.
// The result is always 43 characters long.
func RandomToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[utils RandomToken] failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the base64url SHA-256 of a token, for use as a storage key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
