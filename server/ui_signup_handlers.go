package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/users"
)

// RegisterPageData contains data for rendering the registration page
type RegisterPageData struct {
	AppName  string
	Error    string
	Username string
	Email    string
	FullName string
}

// RegisterPageUIHandler displays the registration page (GET /register)
func (s *Server) RegisterPageUIHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("register.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		data := RegisterPageData{
			AppName:  s.app.Config.GetAppName(),
			Error:    q.Get("error"),
			Username: q.Get("username"),
			Email:    q.Get("email"),
			FullName: q.Get("full_name"),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			s.logger.Err(err).Msg("Failed to render register template")
			http.Error(w, "Failed to render register page", http.StatusInternalServerError)
		}
	}, nil
}

// RegisterSubmissionHandler creates the account (POST /auth/register). On success
// the browser is sent to the login page since registration issues no token.
func (s *Server) RegisterSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		profile := users.Profile{
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			FullName: r.FormValue("full_name"),
		}
		if r.FormValue("confirm_password") != profile.Password {
			redirectWithError(w, r, RouteRegister, "Passwords do not match", profileValues(profile))
			return
		}

		user, err := s.app.Auth.Register(r.Context(), profile)
		if err != nil {
			redirectWithError(w, r, RouteRegister, errorMessage(err, auth.MsgRegistrationFailed), profileValues(profile))
			return
		}

		q := url.Values{"notice": {"Account created, please sign in"}, "username": {user.Username}}
		redirectSuccess(w, r, RouteLogin+"?"+q.Encode())
	}
}

func profileValues(p users.Profile) url.Values {
	return url.Values{
		"username":  {p.Username},
		"email":     {p.Email},
		"full_name": {p.FullName},
	}
}
