package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/{$}"

	// Auth Routes - Login & Logout
	RouteLogin      = "/login"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"
	RouteCallback   = "/auth/callback"

	// Admin Routes
	RouteAdmin = "/admin"

	RouteMetrics = "/metrics"

	// authCookiePath scopes the state cookie to the login and callback routes.
	authCookiePath = "/auth"
)
