package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrCorruptRecord is returned by Get when a stored session cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt session record")

// Session is a server-side admin session. Key is the hash of the identifier
// handed to the browser; the identifier itself is never stored.
type Session struct {
	Key         string    `json:"key"`
	AdminUserID string    `json:"admin_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its absolute expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Repo defines session storage. Every write replaces a whole record, so a
// concurrent Get sees either the old record, the new one, or none.
type Repo interface {
	// Create stores a new session
	Create(ctx context.Context, session Session) error

	// Get returns the session for key, or nil, nil when there is none
	Get(ctx context.Context, key string) (*Session, error)

	// Delete removes a session, including one Get reports as corrupt;
	// deleting a missing session is not an error
	Delete(ctx context.Context, key string) error

	// DeleteForAdmin removes every session owned by the admin
	DeleteForAdmin(ctx context.Context, adminUserID string) error

	// DeleteExpired removes sessions whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) error
}
