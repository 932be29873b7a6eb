package config

import "time"

// OAuthConfig describes the GitHub OAuth app and how we talk to GitHub.
type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthURL() string
	GetTokenURL() string
	GetAPIURL() string
	GetScopes() []string
	GetStateTTL() time.Duration
	GetRequestTimeout() time.Duration
	GetMaxRetries() int
	GetRetryBaseDelay() time.Duration
	GetMinRequestInterval() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("GITHUB_CLIENT_ID", "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv("GITHUB_CLIENT_SECRET", "")
}

func (OAuth) GetAuthURL() string {
	return GetEnv("GITHUB_AUTH_URL", "https://github.com/login/oauth/authorize")
}

func (OAuth) GetTokenURL() string {
	return GetEnv("GITHUB_TOKEN_URL", "https://github.com/login/oauth/access_token")
}

func (OAuth) GetAPIURL() string {
	return GetEnv("GITHUB_API_URL", "https://api.github.com")
}

func (OAuth) GetScopes() []string {
	return []string{"read:user"}
}

func (OAuth) GetStateTTL() time.Duration {
	return GetEnvDuration("OAUTH_STATE_TTL", 10*time.Minute)
}

func (OAuth) GetRequestTimeout() time.Duration {
	return GetEnvDuration("GITHUB_REQUEST_TIMEOUT", 10*time.Second)
}

func (OAuth) GetMaxRetries() int {
	return GetEnvInt("GITHUB_MAX_RETRIES", 3)
}

func (OAuth) GetRetryBaseDelay() time.Duration {
	return GetEnvDuration("GITHUB_RETRY_BASE_DELAY", 500*time.Millisecond)
}

// GetMinRequestInterval is the minimum gap between calls to GitHub.
func (OAuth) GetMinRequestInterval() time.Duration {
	return GetEnvDuration("GITHUB_MIN_REQUEST_INTERVAL", 100*time.Millisecond)
}
