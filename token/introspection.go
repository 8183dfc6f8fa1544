package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// ErrNotJWT is returned for access tokens that are not JWTs. The API is free to issue
// opaque tokens, so callers treat it as "no hints available" rather than a failure.
var ErrNotJWT = errors.New("token is not a JWT")

// TokenIntrospection is what the client can learn about an access token without
// the signing key. Nothing here is verified; the API stays the authority.
type TokenIntrospection struct {
	Sub    *string   `json:"sub,omitempty"`      // Subject, usually the username
	Admin  *bool     `json:"is_admin,omitempty"` // is_admin claim when the API emits one
	Expiry time.Time `json:"-"`                  // exp as a time, zero when absent
}

// Inspect reads the claims of rawToken without verifying the signature.
func Inspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{}, nil
	}
	if strings.Count(rawToken, ".") != 2 {
		return &TokenIntrospection{}, ErrNotJWT
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return &TokenIntrospection{}, errors.Wrap(ErrNotJWT, err.Error())
	}

	claims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return &TokenIntrospection{}, errors.New("[Inspect] error extracting claims")
	}

	result := &TokenIntrospection{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		result.Sub = &sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.Expiry = exp.Time.UTC()
	}
	if admin, ok := claims["is_admin"].(bool); ok {
		result.Admin = &admin
	}
	return result, nil
}

// Expiry returns the token's exp claim, or the zero time when it cannot be read.
func Expiry(rawToken string) time.Time {
	info, err := Inspect(rawToken)
	if err != nil || info == nil {
		return time.Time{}
	}
	return info.Expiry
}
