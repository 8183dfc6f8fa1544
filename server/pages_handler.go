package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/users"
)

// MenuItem is one entry of the page navigation.
type MenuItem struct {
	Label  string
	Href   string
	Active bool
}

// AppPageData contains data for rendering an application page
type AppPageData struct {
	AppName string
	Title   string
	User    *users.User
	Menu    []MenuItem
}

// AppPageHandler renders the shell of every guarded application page. Page
// content is served by the farm admin API; the shell only proves the session.
func (s *Server) AppPageHandler() (http.HandlerFunc, error) {
	tmpl, err := ParseTemplate("page.html")
	if err != nil {
		return nil, err
	}

	return func(w http.ResponseWriter, r *http.Request) {
		current := navigation.Clean(r.URL.Path)
		data := AppPageData{
			AppName: s.app.Config.GetAppName(),
			Title:   pageTitle(current),
			User:    s.app.Session.Snapshot().User,
		}
		for _, route := range navigation.AppRoutes {
			data.Menu = append(data.Menu, MenuItem{Label: pageTitle(route), Href: route, Active: route == current})
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			s.logger.Err(err).Str("path", current).Msg("Failed to render page template")
			http.Error(w, "Failed to render page", http.StatusInternalServerError)
		}
	}, nil
}

// pageTitle turns "/craw-data" into "Craw Data".
func pageTitle(route string) string {
	words := strings.Fields(strings.ReplaceAll(strings.Trim(route, "/"), "-", " "))
	for i, w := range words {
		switch w {
		case "fb":
			words[i] = "FB"
		default:
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
