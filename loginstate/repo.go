package loginstate

import (
	"context"
	"time"
)

// PendingLogin is a login attempt that has been sent to the identity provider
// and not yet come back through the callback.
type PendingLogin struct {
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo stores pending logins keyed by state.
type Repo interface {
	// Save stores a pending login. ttl is a storage hint; expiry is still checked on Take.
	Save(ctx context.Context, pending PendingLogin, ttl time.Duration) error

	// Take atomically retrieves and removes the pending login for state.
	// Returns nil, nil when there is no entry. Of any number of concurrent
	// calls for the same state, at most one returns the entry.
	Take(ctx context.Context, state string) (*PendingLogin, error)

	// DeleteExpired removes entries created before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) error
}
