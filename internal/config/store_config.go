package config

import (
	"encoding/base64"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetStorePath() string
	GetStoreKey() ([]byte, error)
	GetCookieDays() int
}

type Store struct{}

var _ StoreConfig = Store{}

// GetStoreDriver is one of "file", "sqlite" or "memory".
func (Store) GetStoreDriver() string {
	return GetEnv("STORE_DRIVER", "file")
}

func (s Store) GetStorePath() string {
	def := filepath.Join(".", "data", "session.json")
	if s.GetStoreDriver() == "sqlite" {
		def = filepath.Join(".", "data", "session.db")
	}
	return GetEnv("STORE_PATH", def)
}

// GetStoreKey returns the base64 encoded 32 byte sealing key, or nil when values
// should be stored in the clear. A key that is set but unusable is an error.
func (Store) GetStoreKey() ([]byte, error) {
	raw := GetEnv("STORE_KEY", "")
	if raw == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrap(err, "[GetStoreKey] STORE_KEY is not valid base64")
	}
	if len(key) != 32 {
		return nil, errors.Errorf("[GetStoreKey] STORE_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (Store) GetCookieDays() int {
	days, err := strconv.Atoi(GetEnv("COOKIE_DAYS", "7"))
	if err != nil || days <= 0 {
		return 7
	}
	return days
}
