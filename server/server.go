package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/app"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server is the local web shell around one App session.
type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	app    *app.App
	logger zerolog.Logger
}

// ServerOption defines a function type to modify the Server instance.
type ServerOption func(*Server)

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(a *app.App, options ...ServerOption) (*Server, error) {
	if a == nil {
		return nil, errors.New("[server.New] app is required")
	}

	s := &Server{
		env:    a.Config.GetEnv(),
		mux:    http.NewServeMux(),
		app:    a,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.initRoutes(); err != nil {
		return nil, errors.Wrap(err, "[server.New] failed to register routes")
	}
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
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
