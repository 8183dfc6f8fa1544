package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
)

// ErrorKind classifies why an operation failed.
type ErrorKind string

const (
	// KindCredentialInvalid: the API rejected the submitted credentials or profile.
	KindCredentialInvalid ErrorKind = "credential-invalid"
	// KindTransport: the call could not be completed.
	KindTransport ErrorKind = "transport"
	// KindValidation: the input was refused before any call was made.
	KindValidation ErrorKind = "validation"
	// KindSuperseded: a newer operation, or a forced clear, overtook this one.
	KindSuperseded ErrorKind = "superseded"
	// KindNoUserData: no usable cached identity was found.
	KindNoUserData ErrorKind = "no-user-data"
	// KindStorage: the credential store refused a write or a removal.
	KindStorage ErrorKind = "storage"
)

// Fallback messages shown when the API gives no detail.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgNoUserData         = "No user data found"
	MsgUserDataFailed     = "Failed to get user data"
	MsgSuperseded         = "Operation superseded"
	MsgSaveFailed         = sessions.PersistFailedMessage
	MsgLogoutIncomplete   = "Signed out, but the stored session could not be removed"
)

// Error is returned by every Service operation. Message is what the session
// error field holds and what the UI shows.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps kinds onto the shared sentinels so callers can use errors.Is.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindCredentialInvalid:
		return target == apperrors.ErrInvalidCredentials
	case KindTransport:
		return target == apperrors.ErrTransport
	case KindValidation:
		return target == apperrors.ErrValidation
	case KindSuperseded:
		return target == apperrors.ErrOperationSuperseded
	case KindNoUserData:
		return target == apperrors.ErrNoUserData
	case KindStorage:
		return target == apperrors.ErrStorage
	}
	return false
}
