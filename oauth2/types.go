package oauth2

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// PasswordGrant exchanges a username and password for an access token.
	// Used in: first-party admin front ends talking to their own API
	// Token request includes: grant_type, username, password (form encoded)
	// Returns: access_token, token_type
	PasswordGrant GrantType = "password"
)

// TokenType is how an access token is presented to the API.
type TokenType string

const (
	// BearerTokenType is sent as "Authorization: Bearer <access_token>".
	BearerTokenType TokenType = "bearer"
)

// AuthorizationHeader formats token for the Authorization request header.
func AuthorizationHeader(token string) string {
	return "Bearer " + token
}
