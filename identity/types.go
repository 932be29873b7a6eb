// Package identity talks to the GitHub OAuth endpoints: it builds the
// authorization redirect, exchanges the callback code for an access token and
// fetches the signed-in user's profile.
package identity

import (
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

// ProviderIdentity is the authenticated user as reported by the provider.
// Only ProviderUserID may be used for authorization decisions.
type ProviderIdentity struct {
	ProviderUserID int64
	Username       string
}

// MaxRetriesLimit bounds Config.MaxRetries.
const MaxRetriesLimit = 10

// Config holds the OAuth app registration and the client's call policy.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	APIURL       string
	RedirectURL  string
	Scopes       []string

	RequestTimeout     time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	MinRequestInterval time.Duration
}

// Validate checks the fields that have no sensible default.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("client id is required")
	case c.ClientSecret == "":
		return fmt.Errorf("client secret is required")
	case c.AuthURL == "" || c.TokenURL == "" || c.APIURL == "":
		return fmt.Errorf("auth, token and api urls are required")
	case c.RedirectURL == "":
		return fmt.Errorf("redirect url is required")
	case c.MaxRetries < 0:
		return fmt.Errorf("max retries must not be negative")
	case c.MaxRetries > MaxRetriesLimit:
		return fmt.Errorf("max retries must not exceed %d", MaxRetriesLimit)
	}
	return nil
}

// Operation names, used in errors, logs and metrics.
const (
	OpTokenExchange = "token_exchange"
	OpFetchProfile  = "fetch_profile"
)

// ProviderError describes a failed call to the provider.
// It matches ErrOAuthExchangeFailed or ErrProfileFetchFailed with errors.Is,
// and ErrProfileFetchTransient as well when a profile fetch ran out of retries.
type ProviderError struct {
	Op         string
	StatusCode int    // 0 when no response was received
	Code       string // provider error code, e.g. "bad_verification_code"
	Detail     string // provider error description
	transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Transient reports whether the failure was a timeout, 5xx or rate limit.
func (e *ProviderError) Transient() bool {
	return e.transient
}

func (e *ProviderError) Unwrap() []error {
	var errs []error
	switch e.Op {
	case OpTokenExchange:
		errs = append(errs, autherrors.ErrOAuthExchangeFailed)
	case OpFetchProfile:
		errs = append(errs, autherrors.ErrProfileFetchFailed)
		if e.transient {
			errs = append(errs, autherrors.ErrProfileFetchTransient)
		}
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
