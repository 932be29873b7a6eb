package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/admins"
	"github.com/jrsteele09/tourney-finder/authflow"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyAdmin stores the authenticated *admins.AdminUser
const ContextKeyAdmin ContextKey = "admin"

// RequireSessionAuth validates the admin session cookie. Any failure, including
// a storage error, sends the browser back to the login page.
func (s *Server) RequireSessionAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(adminSessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectWithError(w, r, RouteLogin, authflow.CategoryAuthFailed)
				return
			}

			admin, err := s.sessions.Validate(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, autherrors.ErrSessionInvalid) {
					log.Error().Err(err).Msg("failed to validate admin session")
				}
				s.clearCookie(w, r, adminSessionCookieName, "/")
				redirectWithError(w, r, RouteLogin, authflow.CategoryAuthFailed)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAdmin, admin)
			next(w, r.WithContext(ctx))
		}
	}
}

// AdminFromContext returns the admin set by RequireSessionAuth.
func AdminFromContext(ctx context.Context) (*admins.AdminUser, bool) {
	admin, ok := ctx.Value(ContextKeyAdmin).(*admins.AdminUser)
	return admin, ok && admin != nil
}
