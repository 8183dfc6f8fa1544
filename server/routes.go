package server

import (
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() error {
	loginPage, err := s.LoginPageUIHandler()
	if err != nil {
		return err
	}
	registerPage, err := s.RegisterPageUIHandler()
	if err != nil {
		return err
	}
	appPage, err := s.AppPageHandler()
	if err != nil {
		return err
	}

	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(loginPage, s.HTMLMiddleWare(s.RequireGuard())...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(registerPage, s.HTMLMiddleWare(s.RequireGuard())...))
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Application pages (guarded)
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(appPage, s.HTMLMiddleWare(s.RequireGuard())...))
	for _, route := range navigation.AppRoutes {
		s.RegisterRouteHandler("GET "+route, ChainMiddleware(appPage, s.HTMLMiddleWare(s.RequireGuard())...))
	}

	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.app.Registry, promhttp.HandlerOpts{}))
	return nil
}
