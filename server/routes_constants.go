package server

import "github.com/jrsteele09/go-auth-client/navigation"

// Route path constants
// Page paths come from navigation so the shell and the router agree.
const (
	RouteRoot     = navigation.RouteRoot
	RouteLogin    = navigation.RouteLogin
	RouteRegister = navigation.RouteRegister

	// Form targets
	RouteAuthLogin    = "/auth/login"
	RouteAuthRegister = "/auth/register"
	RouteAuthLogout   = "/auth/logout"

	// API Routes
	RouteAPISession = "/api/session"
	RouteMetrics    = "/metrics"
)
