package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/authflow"
)

const contentTypeHTML = "text/html; charset=utf-8"

// loginAgainMessage covers both refused and unverifiable logins.
const loginAgainMessage = "Sign-in failed. Please log in again."

// loginErrorMessages are the only texts a failed login can put on the page.
var loginErrorMessages = map[authflow.Category]string{
	authflow.CategoryCSRF:          loginAgainMessage,
	authflow.CategoryNotAuthorized: loginAgainMessage,
	authflow.CategoryOAuth:         "GitHub did not complete the sign-in. Please try again.",
	authflow.CategoryServer:        "Sign-in is temporarily unavailable. Please try again shortly.",
	authflow.CategoryAuthFailed:    "Please sign in to continue.",
}

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName  string
	LoginURL string
	Error    string
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := LoginPageData{
			AppName:  s.config.GetAppName(),
			LoginURL: RouteAuthLogin,
			// Unknown categories render no message.
			Error: loginErrorMessages[authflow.Category(r.URL.Query().Get("error"))],
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := s.loginTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}
