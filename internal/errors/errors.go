package errors

import (
	"errors"
)

// Common error types for the session client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation failed")

	// Transport errors
	ErrTransport = errors.New("transport failure")

	// Storage errors
	ErrStorage = errors.New("credential store failure")

	// Session errors
	ErrNoUserData          = errors.New("no user data found")
	ErrOperationSuperseded = errors.New("operation superseded")
)
