package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session             // key -> session
	byAdmin  map[string]map[string]struct{} // adminUserID -> keys
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Session),
		byAdmin:  make(map[string]map[string]struct{}),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, session Session) error {
	if session.Key == "" {
		return errors.New("session key is required")
	}
	if session.AdminUserID == "" {
		return errors.New("admin user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.Key]; exists {
		return errors.New("session key already exists")
	}
	r.sessions[session.Key] = session
	if _, ok := r.byAdmin[session.AdminUserID]; !ok {
		r.byAdmin[session.AdminUserID] = make(map[string]struct{})
	}
	r.byAdmin[session.AdminUserID][session.Key] = struct{}{}
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, key string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[key]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(key)
	return nil
}

func (r *InMemoryRepo) DeleteForAdmin(_ context.Context, adminUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.byAdmin[adminUserID] {
		r.deleteLocked(key)
	}
	return nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, session := range r.sessions {
		if session.Expired(now) {
			r.deleteLocked(key)
		}
	}
	return nil
}

func (r *InMemoryRepo) deleteLocked(key string) {
	session, ok := r.sessions[key]
	if !ok {
		return
	}
	delete(r.sessions, key)

	keys := r.byAdmin[session.AdminUserID]
	delete(keys, key)
	// Clean up empty admin index
	if len(keys) == 0 {
		delete(r.byAdmin, session.AdminUserID)
	}
}

// Len returns the number of stored sessions, expired or not.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
