package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/tourney-finder/admins"
	"github.com/jrsteele09/tourney-finder/authflow"
	"github.com/jrsteele09/tourney-finder/internal/config"
	"github.com/jrsteele09/tourney-finder/token"
)

// SessionService validates and ends admin sessions.
type SessionService interface {
	Validate(ctx context.Context, sessionID string) (*admins.AdminUser, error)
	Destroy(ctx context.Context, sessionID string) error
	MaxAge() time.Duration
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	flow        *authflow.Controller
	sessions    SessionService
	stateSigner *token.HMACSigner
	authLimiter *RateLimiter
	loginTmpl   *template.Template
	adminTmpl   *template.Template
	now         func() time.Time
}

func New(config config.Config, flow *authflow.Controller, sessions SessionService) (*Server, error) {
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse login template: %w", err)
	}
	adminTmpl, err := ParseTemplate("admin.html")
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse admin template: %w", err)
	}

	s := &Server{
		env:         config.GetEnv(),
		mux:         http.NewServeMux(),
		config:      config,
		flow:        flow,
		sessions:    sessions,
		stateSigner: token.NewHMACSigner(config.GetCookieSigningKey()),
		authLimiter: NewRateLimiter(config.GetAuthRateLimit(), config.GetAuthRateBurst(), 10*time.Minute),
		loginTmpl:   loginTmpl,
		adminTmpl:   adminTmpl,
		now:         time.Now,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
