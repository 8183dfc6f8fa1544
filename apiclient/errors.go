package apiclient

import (
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrUnauthorized matches any *APIError carrying a 401.
	ErrUnauthorized = apperrors.ErrUnauthorized

	// ErrTransport matches failures where no response was received.
	ErrTransport = apperrors.ErrTransport
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	// Detail is the API's error detail, empty when the body carried none.
	Detail string
	Body   []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is supports errors.Is(err, ErrUnauthorized).
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TransportError wraps a failure to obtain any response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, ErrTransport).
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
