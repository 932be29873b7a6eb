// Package token signs the short-lived values the server hands to browsers.
package token

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACSigner signs and verifies HS256 JWTs with a shared secret.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a signer. The secret should be at least 32 bytes.
func NewHMACSigner(secret []byte) *HMACSigner {
	return &HMACSigner{
		secret: secret,
	}
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("[token Sign] failed to sign token with HMAC: %w", err)
	}
	return signedToken, nil
}

// Parse verifies raw and fills claims. Expired tokens and tokens signed with
// any other algorithm are rejected.
func (h *HMACSigner) Parse(raw string, claims jwt.Claims) error {
	if raw == "" {
		return errors.New("[token Parse] empty token")
	}
	_, err := jwt.ParseWithClaims(raw, claims, h.GetVerificationKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("[token Parse] %w", err)
	}
	return nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
