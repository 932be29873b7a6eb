package authflow

import (
	"errors"

	"github.com/jrsteele09/tourney-finder/identity"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

// Category is the coarse, user-facing outcome of a failed login.
// It is safe to put in a redirect URL; internal detail is not.
type Category string

const (
	CategoryAuthFailed    Category = "auth_failed"
	CategoryNotAuthorized Category = "not_authorized"
	CategoryCSRF          Category = "csrf_error"
	CategoryOAuth         Category = "oauth_error"
	CategoryServer        Category = "server_error"
)

// ErrProviderDenied is returned when the provider redirects back with ?error=.
var ErrProviderDenied = errors.New("provider returned an error")

// CategoryOf maps an error from CompleteLogin or session validation to a Category.
func CategoryOf(err error) Category {
	var providerErr *identity.ProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, autherrors.ErrCsrfValidationFailed):
		return CategoryCSRF
	case errors.Is(err, autherrors.ErrNotAuthorized):
		return CategoryNotAuthorized
	case errors.As(err, &providerErr) && providerErr.Transient():
		// Provider unavailable: not the user's fault, and not a denial.
		return CategoryServer
	case errors.Is(err, autherrors.ErrOAuthExchangeFailed),
		errors.Is(err, autherrors.ErrProfileFetchFailed):
		return CategoryOAuth
	case errors.Is(err, autherrors.ErrSessionInvalid):
		return CategoryAuthFailed
	}
	return CategoryServer
}
