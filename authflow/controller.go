// Package authflow runs the admin login: it sends the browser to the identity
// provider and, on the callback, turns a code into an admin session.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/tourney-finder/admins"
	"github.com/jrsteele09/tourney-finder/identity"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
	"github.com/jrsteele09/tourney-finder/internal/metrics"
)

// BrowserSession is the pre-login state held for one browser.
// The HTTP layer backs it with a cookie.
type BrowserSession interface {
	// BindState remembers state for this browser until the callback.
	BindState(state string) error
	// Clear drops everything bound to this browser before login completed.
	Clear()
}

type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state, sessionState string) error
}

type IdentityProvider interface {
	BuildAuthorizationURL(state string) string
	ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (identity.ProviderIdentity, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, id identity.ProviderIdentity) (*admins.AdminUser, error)
}

type SessionIssuer interface {
	Create(ctx context.Context, admin *admins.AdminUser) (string, error)
}

// Controller orchestrates the login. It holds no state of its own.
type Controller struct {
	states     StateStore
	provider   IdentityProvider
	authorizer Authorizer
	sessions   SessionIssuer
}

func NewController(states StateStore, provider IdentityProvider, authorizer Authorizer, sessions SessionIssuer) *Controller {
	return &Controller{
		states:     states,
		provider:   provider,
		authorizer: authorizer,
		sessions:   sessions,
	}
}

// BeginLogin issues a state, binds it to the browser and returns the provider URL.
func (c *Controller) BeginLogin(ctx context.Context, browser BrowserSession) (string, error) {
	state, err := c.states.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("[authflow BeginLogin] %w", err)
	}
	if err := browser.BindState(state); err != nil {
		return "", fmt.Errorf("[authflow BeginLogin] bind state: %w", err)
	}
	return c.provider.BuildAuthorizationURL(state), nil
}

// CallbackParams are the query parameters of the provider callback.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CompleteLogin handles the provider callback. boundState is the state the
// browser session remembers from BeginLogin. On any failure the browser
// session is cleared before returning.
func (c *Controller) CompleteLogin(ctx context.Context, browser BrowserSession, params CallbackParams, boundState string) (sessionID string, err error) {
	started := time.Now()
	defer func() {
		if err != nil {
			browser.Clear()
			metrics.RecordLogin(string(CategoryOf(err)), started)
			return
		}
		metrics.RecordLogin("success", started)
	}()

	// No network call is made for a callback that fails this check.
	if err := c.states.Consume(ctx, params.State, boundState); err != nil {
		return "", err
	}

	if params.Error != "" {
		return "", fmt.Errorf("%w: %s: %s: %w", ErrProviderDenied, params.Error, params.ErrorDescription, autherrors.ErrOAuthExchangeFailed)
	}

	token, err := c.provider.ExchangeCodeForToken(ctx, params.Code)
	if err != nil {
		return "", err
	}

	ident, err := c.provider.FetchProfile(ctx, token)
	if err != nil {
		return "", err
	}

	admin, err := c.authorizer.Authorize(ctx, ident)
	if err != nil {
		if errors.Is(err, autherrors.ErrNotAuthorized) {
			log.Info().Int64("provider_user_id", ident.ProviderUserID).Msg("login refused for identity not on the admin allow-list")
		}
		return "", err
	}

	sessionID, err = c.sessions.Create(ctx, admin)
	if err != nil {
		return "", fmt.Errorf("[authflow CompleteLogin] create session: %w", err)
	}

	browser.Clear()
	log.Info().Str("admin_id", admin.ID).Int64("provider_user_id", admin.ProviderUserID).Msg("admin logged in")
	return sessionID, nil
}
