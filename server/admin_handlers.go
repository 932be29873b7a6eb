package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/authflow"
)

// AdminPageData contains data for rendering the admin landing page
type AdminPageData struct {
	AppName     string
	Username    string
	LastLoginAt string
	LogoutURL   string
}

// AdminDashboardHandler renders the admin landing page (GET /admin)
func (s *Server) AdminDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := AdminFromContext(r.Context())
		if !ok {
			redirectWithError(w, r, RouteLogin, authflow.CategoryAuthFailed)
			return
		}

		data := AdminPageData{
			AppName:     s.config.GetAppName(),
			Username:    admin.Username,
			LastLoginAt: admin.LastLoginAt.Format("2006-01-02 15:04 MST"),
			LogoutURL:   RouteAuthLogout,
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		if err := s.adminTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render admin template")
			http.Error(w, "Failed to render admin page", http.StatusInternalServerError)
		}
	}
}
