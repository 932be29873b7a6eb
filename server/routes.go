package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.BeginLoginHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.MethodNotAllowedHandler(http.MethodGet), s.AuthMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthLogout, ChainMiddleware(s.MethodNotAllowedHandler(http.MethodPost), s.AuthMiddleware()...))

	// Admin routes (require session-based auth)
	s.RegisterRouteHandler("GET "+RouteAdmin, ChainMiddleware(s.AdminDashboardHandler(), s.HTMLMiddleWare(s.RequireSessionAuth())...))

	s.RegisterRouteFunc("GET "+RouteMetrics, promhttp.Handler().ServeHTTP)
}

// IndexHandler sends visitors to the admin area, which in turn sends them to login.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteAdmin, http.StatusSeeOther)
	}
}

// MethodNotAllowedHandler answers 405 for routes that only accept the given methods.
func (s *Server) MethodNotAllowedHandler(allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, method := range allowed {
			w.Header().Add("Allow", method)
		}
		http.Error(w, "405 - Method Not Allowed", http.StatusMethodNotAllowed)
	}
}
