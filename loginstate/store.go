// Package loginstate issues and single-use validates the OAuth state parameter
// that ties a provider callback to the browser that started the login.
package loginstate

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
	"github.com/jrsteele09/tourney-finder/internal/utils"
)

// DefaultTTL is how long a login attempt may take at the provider.
const DefaultTTL = 10 * time.Minute

// Store is the state token store used by the login flow.
type Store struct {
	repo Repo
	ttl  time.Duration
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(repo Repo, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		ttl:  DefaultTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a new random state and records it as a pending login.
func (s *Store) Issue(ctx context.Context) (string, error) {
	state, err := utils.RandomToken()
	if err != nil {
		return "", fmt.Errorf("[loginstate Issue] %w", err)
	}
	if err := s.repo.Save(ctx, PendingLogin{State: state, CreatedAt: s.now()}, s.ttl); err != nil {
		return "", fmt.Errorf("[loginstate Issue] save: %w", err)
	}
	return state, nil
}

// Consume validates state against the pending login and the value bound to the
// browser session. The pending login is removed whatever the outcome.
func (s *Store) Consume(ctx context.Context, state, sessionState string) error {
	if state == "" {
		return fmt.Errorf("[loginstate Consume] empty state: %w", autherrors.ErrCsrfValidationFailed)
	}

	pending, err := s.repo.Take(ctx, state)
	if err != nil {
		// Storage failures are reported as CSRF failures too: the attempt cannot be trusted.
		return fmt.Errorf("[loginstate Consume] take: %v: %w", err, autherrors.ErrCsrfValidationFailed)
	}
	if pending == nil {
		return fmt.Errorf("[loginstate Consume] unknown or reused state: %w", autherrors.ErrCsrfValidationFailed)
	}
	if s.now().Sub(pending.CreatedAt) > s.ttl {
		return fmt.Errorf("[loginstate Consume] state expired: %w", autherrors.ErrCsrfValidationFailed)
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(sessionState)) != 1 {
		return fmt.Errorf("[loginstate Consume] state not bound to this browser: %w", autherrors.ErrCsrfValidationFailed)
	}
	return nil
}

// Sweep removes pending logins older than the TTL.
func (s *Store) Sweep(ctx context.Context) error {
	return s.repo.DeleteExpired(ctx, s.now().Add(-s.ttl))
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Warn().Err(err).Msg("pending login sweep failed")
			}
		}
	}
}
