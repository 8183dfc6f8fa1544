package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// User is the cached identity of the signed-in operator. The field names follow the
// API's JSON so that a user persisted by any earlier client remains readable.
type User struct {
	ID        int       `json:"id"`         // Server identifier, 0 when synthesized locally
	Username  string    `json:"username"`   // Unique login name
	Email     string    `json:"email"`      // Contact address
	FullName  string    `json:"full_name"`  // Display name
	IsActive  bool      `json:"is_active"`  // Account enabled
	IsAdmin   bool      `json:"is_admin"`   // Administrative privileges
	CreatedAt time.Time `json:"created_at"` // When the account was created
}

// Credentials are submitted to the login endpoint.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Profile is submitted to the registration endpoint.
type Profile struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
}

// FromCredentials builds the identity used when the API only hands back a token.
// Administrative rights are assumed for the "admin" account only.
func FromCredentials(creds Credentials, now time.Time) User {
	username := strings.TrimSpace(creds.Username)
	return User{
		ID:        0,
		Username:  username,
		Email:     fmt.Sprintf("%s@example.com", username),
		FullName:  username,
		IsActive:  true,
		IsAdmin:   username == "admin",
		CreatedAt: now.UTC(),
	}
}

// DisplayName returns the full name, or the username when no full name is known.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
