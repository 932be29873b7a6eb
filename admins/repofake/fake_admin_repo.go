package fakeadminrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/tourney-finder/admins"
	"github.com/jrsteele09/tourney-finder/identity"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

var _ admins.Repo = (*FakeAdminRepo)(nil)

type FakeAdminRepo struct {
	admins      map[string]*admins.AdminUser
	providerIDs map[int64]string // provider user id to admin id
	lock        sync.RWMutex
}

func NewFakeAdminRepo() *FakeAdminRepo {
	return &FakeAdminRepo{
		admins:      make(map[string]*admins.AdminUser),
		providerIDs: make(map[int64]string),
	}
}

func (ar *FakeAdminRepo) GetByID(_ context.Context, id string) (*admins.AdminUser, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	admin, ok := ar.admins[id]
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	copied := *admin
	return &copied, nil
}

func (ar *FakeAdminRepo) GetByProviderUserID(ctx context.Context, providerUserID int64) (*admins.AdminUser, error) {
	ar.lock.RLock()
	id, ok := ar.providerIDs[providerUserID]
	ar.lock.RUnlock()
	if !ok {
		return nil, autherrors.ErrNotFound
	}
	return ar.GetByID(ctx, id)
}

func (ar *FakeAdminRepo) RecordLogin(_ context.Context, ident identity.ProviderIdentity, at time.Time) (*admins.AdminUser, error) {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	id, ok := ar.providerIDs[ident.ProviderUserID]
	if !ok {
		id = uuid.New().String()
		ar.providerIDs[ident.ProviderUserID] = id
		ar.admins[id] = &admins.AdminUser{
			ID:             id,
			ProviderUserID: ident.ProviderUserID,
			CreatedAt:      at,
		}
	}
	admin := ar.admins[id]
	admin.Username = ident.Username
	admin.LastLoginAt = at

	copied := *admin
	return &copied, nil
}

// Count returns the number of stored admins.
func (ar *FakeAdminRepo) Count() int {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	return len(ar.admins)
}
