package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName    string
	Error      string
	Notice     string
	Username   string // Preserve username on error
	ShowSignUp bool
}

// LoginPageUIHandler displays the login page (GET /login)
func (s *Server) LoginPageUIHandler() (http.HandlerFunc, error) {
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := LoginPageData{
			AppName:    s.app.Config.GetAppName(),
			Error:      q.Get("error"),
			Notice:     q.Get("notice"),
			Username:   q.Get("username"),
			ShowSignUp: true,
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := loginTmpl.Execute(w, data); err != nil {
			s.logger.Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}, nil
}

// LoginSubmissionHandler processes the login form submission (POST /auth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := users.Credentials{
			Username: r.FormValue("username"),
			Password: r.FormValue("password"),
		}
		if _, err := s.app.Auth.Login(r.Context(), creds); err != nil {
			redirectWithError(w, r, RouteLogin, errorMessage(err, auth.MsgLoginFailed), url.Values{"username": {creds.Username}})
			return
		}
		redirectSuccess(w, r, s.afterLogin())
	}
}

// LogoutHandler ends the session (GET /auth/logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.app.Auth.Logout(); err != nil {
			redirectWithError(w, r, s.app.Router.Current(), errorMessage(err, auth.MsgLogoutIncomplete), nil)
			return
		}
		redirectSuccess(w, r, s.app.Router.Current())
	}
}

// afterLogin is where a freshly authenticated browser is sent.
func (s *Server) afterLogin() string {
	if loc := s.app.Router.Current(); !s.app.Guard.IsPublic(loc) && loc != RouteRoot {
		return loc
	}
	return s.app.Guard.LandingPath()
}

// errorMessage returns the user facing message carried by err.
func errorMessage(err error, fallback string) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return fallback
}
