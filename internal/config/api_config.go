package config

import (
	"strconv"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetLoginPath() string
	GetRegisterPath() string
	GetProfilePath() string
}

type API struct{}

var _ APIConfig = API{}

func (API) GetAPIBaseURL() string {
	return GetEnv("API_URL", "http://localhost:8000/api")
}

// GetAPITimeout accepts either whole seconds or a duration string.
func (API) GetAPITimeout() time.Duration {
	return parseDuration(GetEnv("API_TIMEOUT", ""), 10*time.Second)
}

func (API) GetLoginPath() string {
	return GetEnv("API_LOGIN_PATH", "/auth/login")
}

func (API) GetRegisterPath() string {
	return GetEnv("API_REGISTER_PATH", "/auth/register")
}

// GetProfilePath is empty by default: the login flow then synthesizes the user
// from the submitted credentials instead of fetching it.
func (API) GetProfilePath() string {
	return GetEnv("API_PROFILE_PATH", "")
}

func parseDuration(v string, defaultVal time.Duration) time.Duration {
	if v == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}
