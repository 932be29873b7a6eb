package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const loginStateSubject = "login-state"

// LoginStateClaims carry the OAuth state bound to one browser.
type LoginStateClaims struct {
	State string `json:"st"`
	jwt.RegisteredClaims
}

// SignLoginState returns a token binding state to the browser for ttl.
func (h *HMACSigner) SignLoginState(state string, ttl time.Duration, now time.Time) (string, error) {
	return h.Sign(LoginStateClaims{
		State: state,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   loginStateSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

// ParseLoginState returns the state held in raw.
func (h *HMACSigner) ParseLoginState(raw string) (string, error) {
	var claims LoginStateClaims
	if err := h.Parse(raw, &claims); err != nil {
		return "", err
	}
	if claims.Subject != loginStateSubject || claims.State == "" {
		return "", errors.New("[token ParseLoginState] not a login state token")
	}
	return claims.State, nil
}
