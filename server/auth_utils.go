package server

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/authflow"
)

const (
	// adminSessionCookieName is the name of the cookie holding the admin session identifier
	adminSessionCookieName = "admin_session"
	// loginStateCookieName is the name of the cookie binding the OAuth state to the browser
	loginStateCookieName = "oauth_state"
)

func (s *Server) secureCookies(r *http.Request) bool {
	return s.config.GetSecureCookies() || getScheme(r) == "https"
}

func (s *Server) SetAdminSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminSessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessions.MaxAge().Seconds()),
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, r *http.Request, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		HttpOnly: true,
		Secure:   s.secureCookies(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// cookieBrowserSession keeps the pending OAuth state in a signed cookie.
type cookieBrowserSession struct {
	s *Server
	w http.ResponseWriter
	r *http.Request
}

var _ authflow.BrowserSession = (*cookieBrowserSession)(nil)

func (s *Server) browserSession(w http.ResponseWriter, r *http.Request) *cookieBrowserSession {
	return &cookieBrowserSession{s: s, w: w, r: r}
}

func (b *cookieBrowserSession) BindState(state string) error {
	ttl := b.s.config.GetStateTTL()
	signed, err := b.s.stateSigner.SignLoginState(state, ttl, b.s.now())
	if err != nil {
		return err
	}
	http.SetCookie(b.w, &http.Cookie{
		Name:     loginStateCookieName,
		Value:    signed,
		Path:     authCookiePath,
		HttpOnly: true,
		Secure:   b.s.secureCookies(b.r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
	return nil
}

func (b *cookieBrowserSession) Clear() {
	b.s.clearCookie(b.w, b.r, loginStateCookieName, authCookiePath)
}

// boundState returns the state bound by BeginLogin, or "" when the cookie is
// missing, forged or expired.
func (b *cookieBrowserSession) boundState() string {
	cookie, err := b.r.Cookie(loginStateCookieName)
	if err != nil {
		return ""
	}
	state, err := b.s.stateSigner.ParseLoginState(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring invalid login state cookie")
		return ""
	}
	return state
}

// redirectWithError sends the browser to path with a coarse error category.
func redirectWithError(w http.ResponseWriter, r *http.Request, path string, category authflow.Category) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(string(category)), http.StatusSeeOther)
}
