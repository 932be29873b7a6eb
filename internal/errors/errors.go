// Package errors holds the error kinds shared across the login flow.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds for the admin login flow and admin sessions
var (
	// Login flow errors
	ErrCsrfValidationFailed  = errors.New("csrf validation failed")
	ErrOAuthExchangeFailed   = errors.New("oauth code exchange failed")
	ErrProfileFetchFailed    = errors.New("profile fetch failed")
	ErrProfileFetchTransient = errors.New("profile fetch failed (transient)")
	ErrNotAuthorized         = errors.New("not authorized")

	// Session errors
	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = errors.New("session expired")

	// Storage errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
