// Package admins decides which provider identities may administer the site
// and keeps the local record of each admin.
package admins

import (
	"context"
	"time"

	"github.com/jrsteele09/tourney-finder/identity"
)

// AdminUser is the local record of an authorized admin.
type AdminUser struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	ProviderUserID int64     `gorm:"uniqueIndex;not null" json:"provider_user_id"`
	Username       string    `json:"username"`
	LastLoginAt    time.Time `json:"last_login_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repo stores admin users. There is no delete: records are never removed by login.
type Repo interface {
	GetByID(ctx context.Context, id string) (*AdminUser, error)
	GetByProviderUserID(ctx context.Context, providerUserID int64) (*AdminUser, error)

	// RecordLogin creates the admin for identity if missing, otherwise refreshes
	// Username and LastLoginAt. The ID never changes once assigned.
	RecordLogin(ctx context.Context, id identity.ProviderIdentity, at time.Time) (*AdminUser, error)
}
