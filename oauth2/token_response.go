package oauth2

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TokenResponse represents the response from the login endpoint.
type TokenResponse struct {
	// AccessToken is the credential used to access protected resources.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token (always "bearer" for this API).
	TokenType string `json:"token_type,omitempty"`
}

// ErrorResponse is the error body the API returns on non-2xx responses.
// Detail is either a plain string or a list of field validation errors.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail,omitempty"`
}

type validationDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// Message returns the human readable detail, or "" when the body carried none.
func (e ErrorResponse) Message() string {
	if len(e.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}

	var list []validationDetail
	if err := json.Unmarshal(e.Detail, &list); err == nil {
		msgs := make([]string, 0, len(list))
		for _, d := range list {
			if d.Msg == "" {
				continue
			}
			if field := fieldName(d.Loc); field != "" {
				msgs = append(msgs, fmt.Sprintf("%s: %s", field, d.Msg))
				continue
			}
			msgs = append(msgs, d.Msg)
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}

// ParseErrorResponse reads the detail out of body. Bodies that are not JSON yield "".
func ParseErrorResponse(body []byte) string {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	return e.Message()
}

// fieldName picks the last path element of a validation location, skipping "body".
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" {
			return s
		}
	}
	return ""
}
