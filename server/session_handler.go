package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
)

// SessionResponse is the JSON view of the session. The token itself is never
// exposed.
type SessionResponse struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	Loading         bool        `json:"loading"`
	Error           string      `json:"error,omitempty"`
	Phase           string      `json:"phase"`
	User            *users.User `json:"user,omitempty"`
	Location        string      `json:"location"`
	Version         uint64      `json:"version"`
}

func newSessionResponse(snap sessions.Snapshot, location string) SessionResponse {
	return SessionResponse{
		IsAuthenticated: snap.IsAuthenticated(),
		Loading:         snap.Loading,
		Error:           snap.Error,
		Phase:           string(snap.Phase),
		User:            snap.User,
		Location:        location,
		Version:         snap.Version,
	}
}

// SessionHandler reports the current session (GET /api/session)
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := newSessionResponse(s.app.Session.Snapshot(), s.app.Router.Current())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Err(err).Msg("Failed to encode session")
		}
	}
}
