package admins

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/identity"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

// Authorizer maps provider identities to admin users.
type Authorizer struct {
	allowList AllowList
	repo      Repo
	now       func() time.Time
}

func NewAuthorizer(allowList AllowList, repo Repo) *Authorizer {
	if allowList.Len() == 0 {
		log.Warn().Msg("admin allow-list is empty, nobody can log in")
	}
	return &Authorizer{
		allowList: allowList,
		repo:      repo,
		now:       time.Now,
	}
}

// Authorize returns the admin for id, creating it on first login.
// Identities not on the allow-list get ErrNotAuthorized and nothing is written.
func (a *Authorizer) Authorize(ctx context.Context, id identity.ProviderIdentity) (*AdminUser, error) {
	if !a.allowList.Contains(id.ProviderUserID) {
		return nil, autherrors.ErrNotAuthorized
	}

	admin, err := a.repo.RecordLogin(ctx, id, a.now().UTC())
	if err != nil {
		return nil, autherrors.Wrapf(err, "[admins Authorize] record login for %d", id.ProviderUserID)
	}
	return admin, nil
}
