package sessions

import (
	"github.com/jrsteele09/go-auth-client/users"
)

// Phase is the externally visible state of the session.
type Phase string

const (
	Unauthenticated Phase = "unauthenticated"
	Authenticating  Phase = "authenticating"
	Authenticated   Phase = "authenticated"
	// Expired is only ever reported in a Change, between a rejected credential
	// being torn down and the session settling as Unauthenticated.
	Expired Phase = "expired"
)

// Kind identifies the operation that put the session into loading.
type Kind string

const (
	KindLogin    Kind = "login"
	KindRegister Kind = "register"
	KindResume   Kind = "resume"
)

// Reason says why a Change happened.
type Reason string

const (
	ReasonHydrate    Reason = "hydrate"
	ReasonStart      Reason = "start"
	ReasonSuccess    Reason = "success"
	ReasonFailure    Reason = "failure"
	ReasonClearError Reason = "clear_error"
	ReasonLogout     Reason = "logout"
	ReasonRejected   Reason = "rejected"
)

// Forced reports whether r tore the session down.
func (r Reason) Forced() bool {
	return r == ReasonLogout || r == ReasonRejected
}

// Snapshot is a consistent, read-only copy of the session.
type Snapshot struct {
	Token   string      `json:"-"`               // Never serialised
	User    *users.User `json:"user,omitempty"`  // Cached identity
	Loading bool        `json:"loading"`         // An operation is in flight
	Error   string      `json:"error,omitempty"` // Message of the last failed operation
	Version uint64      `json:"version"`         // Increases with every change
	Phase   Phase       `json:"phase"`           // Derived from the fields above
}

// IsAuthenticated holds exactly when a token and a user are both present.
func (s Snapshot) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// Change is delivered to listeners after every mutation.
type Change struct {
	Snapshot Snapshot
	From     Phase
	To       Phase
	Reason   Reason
}

// Operation is the handle returned when an operation starts. Its terminal write is
// only applied while it is still the newest operation of its kind.
type Operation struct {
	ID   string
	Kind Kind

	seq   uint64
	epoch uint64
}

// Epoch is the credential epoch the operation started under.
func (o Operation) Epoch() uint64 {
	return o.epoch
}

// Valid is false for the zero Operation returned by a refused StartIfIdle.
func (o Operation) Valid() bool {
	return o.seq != 0
}
