package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/authflow"
)

// BeginLoginHandler starts the OAuth flow (GET /auth/login).
func (s *Server) BeginLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectURL, err := s.flow.BeginLogin(r.Context(), s.browserSession(w, r))
		if err != nil {
			log.Error().Err(err).Msg("failed to begin admin login")
			redirectWithError(w, r, RouteLogin, authflow.CategoryServer)
			return
		}
		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
	}
}

// OAuthCallbackHandler completes the OAuth flow (GET /auth/callback).
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		browser := s.browserSession(w, r)

		sessionID, err := s.flow.CompleteLogin(r.Context(), browser, authflow.CallbackParams{
			Code:             query.Get("code"),
			State:            query.Get("state"),
			Error:            query.Get("error"),
			ErrorDescription: query.Get("error_description"),
		}, browser.boundState())
		if err != nil {
			category := authflow.CategoryOf(err)
			event := log.Warn()
			if category == authflow.CategoryServer {
				event = log.Error()
			}
			event.Err(err).Str("category", string(category)).Msg("admin login failed")
			redirectWithError(w, r, RouteLogin, category)
			return
		}

		s.SetAdminSessionCookie(w, r, sessionID)
		http.Redirect(w, r, RouteAdmin, http.StatusSeeOther)
	}
}

// LogoutHandler ends the admin session (POST /auth/logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(adminSessionCookieName); err == nil {
			if err := s.sessions.Destroy(r.Context(), cookie.Value); err != nil {
				log.Error().Err(err).Msg("failed to destroy admin session")
			}
		}
		s.clearCookie(w, r, adminSessionCookieName, "/")
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}
