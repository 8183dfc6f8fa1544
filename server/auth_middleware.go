package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-client/navigation"
)

// RequireGuard routes every page request through the session's navigation
// controller. A request for a path the session may not see is answered with a
// redirect to wherever the guard sends it.
func (s *Server) RequireGuard() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requested := navigation.Clean(r.URL.Path)

			// The controller defers while an operation is in flight; fall back to
			// the bare guard so nothing protected leaks in that window.
			if snap := s.app.Session.Snapshot(); snap.Loading {
				if target, ok := s.app.Guard.Redirect(requested, snap); ok {
					redirectSuccess(w, r, target)
					return
				}
				next(w, r)
				return
			}

			if target := s.app.Router.Navigate(requested); target != requested {
				redirectSuccess(w, r, target)
				return
			}
			next(w, r)
		}
	}
}
