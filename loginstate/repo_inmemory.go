package loginstate

import (
	"context"
	"errors"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of Repo
type InMemoryRepo struct {
	mu      sync.Mutex
	pending map[string]PendingLogin
}

// NewInMemoryRepo creates a new in-memory pending login repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		pending: make(map[string]PendingLogin),
	}
}

func (r *InMemoryRepo) Save(_ context.Context, pending PendingLogin, _ time.Duration) error {
	if pending.State == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[pending.State] = pending
	return nil
}

func (r *InMemoryRepo) Take(_ context.Context, state string) (*PendingLogin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, ok := r.pending[state]
	if !ok {
		return nil, nil
	}
	delete(r.pending, state)
	return &pending, nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for state, pending := range r.pending {
		if pending.CreatedAt.Before(cutoff) {
			delete(r.pending, state)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
