// Package sessions issues and validates server-side admin sessions.
// Sessions have an absolute lifetime: using a session never extends it.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/admins"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
	"github.com/jrsteele09/tourney-finder/internal/metrics"
	"github.com/jrsteele09/tourney-finder/internal/utils"
)

// DefaultMaxAge is the absolute session lifetime.
const DefaultMaxAge = time.Hour

// AdminLookup resolves the owner of a session.
type AdminLookup interface {
	GetByID(ctx context.Context, id string) (*admins.AdminUser, error)
}

// Manager is the admin session manager.
type Manager struct {
	repo          Repo
	admins        AdminLookup
	maxAge        time.Duration
	singleSession bool
	now           func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(maxAge time.Duration) Option {
	return func(m *Manager) {
		m.maxAge = maxAge
	}
}

// WithSingleSessionPerAdmin controls whether Create revokes the admin's
// earlier sessions. It is on by default.
func WithSingleSessionPerAdmin(enabled bool) Option {
	return func(m *Manager) {
		m.singleSession = enabled
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(repo Repo, adminLookup AdminLookup, opts ...Option) *Manager {
	m := &Manager{
		repo:          repo,
		admins:        adminLookup,
		maxAge:        DefaultMaxAge,
		singleSession: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxAge is the lifetime given to new sessions.
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Create starts a session for admin and returns the identifier for the cookie.
func (m *Manager) Create(ctx context.Context, admin *admins.AdminUser) (string, error) {
	if admin == nil || admin.ID == "" {
		return "", errors.New("[sessions Create] admin is required")
	}

	if m.singleSession {
		if err := m.repo.DeleteForAdmin(ctx, admin.ID); err != nil {
			return "", fmt.Errorf("[sessions Create] revoke previous sessions: %w", err)
		}
	}

	sessionID, err := utils.RandomToken()
	if err != nil {
		return "", fmt.Errorf("[sessions Create] %w", err)
	}

	now := m.now().UTC()
	session := Session{
		Key:         utils.HashToken(sessionID),
		AdminUserID: admin.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.maxAge),
	}
	if err := m.repo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("[sessions Create] store: %w", err)
	}
	metrics.SessionsCreated.Inc()
	return sessionID, nil
}

// Validate returns the admin owning sessionID. Unknown and expired sessions
// fail with ErrSessionInvalid; expired ones also match ErrSessionExpired.
func (m *Manager) Validate(ctx context.Context, sessionID string) (*admins.AdminUser, error) {
	if sessionID == "" {
		return nil, autherrors.ErrSessionInvalid
	}

	key := utils.HashToken(sessionID)
	session, err := m.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCorruptRecord) {
			m.discard(ctx, key)
		}
		return nil, fmt.Errorf("[sessions Validate] %v: %w", err, autherrors.ErrSessionInvalid)
	}
	if session == nil {
		return nil, autherrors.ErrSessionInvalid
	}
	if session.Expired(m.now()) {
		m.discard(ctx, key)
		return nil, fmt.Errorf("%w: %w", autherrors.ErrSessionInvalid, autherrors.ErrSessionExpired)
	}

	admin, err := m.admins.GetByID(ctx, session.AdminUserID)
	if err != nil {
		// A session whose owner cannot be loaded is not trusted again.
		m.discard(ctx, key)
		return nil, fmt.Errorf("[sessions Validate] load admin: %v: %w", err, autherrors.ErrSessionInvalid)
	}
	return admin, nil
}

// Destroy ends the session. Unknown identifiers are ignored.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.repo.Delete(ctx, utils.HashToken(sessionID)); err != nil {
		return fmt.Errorf("[sessions Destroy] %w", err)
	}
	return nil
}

// Sweep removes expired sessions from repos that do not expire them on their own.
func (m *Manager) Sweep(ctx context.Context) error {
	return m.repo.DeleteExpired(ctx, m.now())
}

func (m *Manager) discard(ctx context.Context, key string) {
	if err := m.repo.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Msg("failed to delete invalid session")
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				log.Warn().Err(err).Msg("expired session sweep failed")
			}
		}
	}
}
