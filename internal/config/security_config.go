package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetCookieSigningKey() []byte
	GetSecureCookies() bool
	GetAuthRateLimit() float64
	GetAuthRateBurst() int
}

type Security struct {
	signingKey []byte
}

var _ SecurityConfig = Security{}

func (Security) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("SESSION_MAX_AGE", time.Hour) // Absolute, never extended
}

func (s Security) GetCookieSigningKey() []byte {
	return s.signingKey
}

// GetSecureCookies is false only for local development over plain http.
func (Security) GetSecureCookies() bool {
	return EnvVars{}.GetEnv() != "DEV"
}

// GetAuthRateLimit is the per-IP request rate allowed on /auth/* routes.
func (Security) GetAuthRateLimit() float64 {
	return 2
}

func (Security) GetAuthRateBurst() int {
	return 10
}

// loadSigningKey reads COOKIE_SIGNING_KEY (base64) or generates a per-process key.
// A generated key means pending logins do not survive a restart, which is acceptable.
func loadSigningKey() ([]byte, error) {
	raw := GetEnv("COOKIE_SIGNING_KEY", "")
	if raw == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate cookie signing key: %w", err)
		}
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("COOKIE_SIGNING_KEY must be base64: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("COOKIE_SIGNING_KEY must decode to at least 32 bytes")
	}
	return key, nil
}
