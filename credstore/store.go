package credstore

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultCookieTTL = 7 * 24 * time.Hour

// Store mirrors the session credential into durable storage and the cookie jar.
// Reads never fail: anything that cannot be read back is reported as absent.
type Store struct {
	kv        KV
	jar       *CookieJar
	cookieTTL time.Duration
	secure    bool
	nowTime   func() time.Time
	logger    zerolog.Logger
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithCookieJar mirrors the token into jar as well as the durable store.
func WithCookieJar(jar *CookieJar) StoreOption {
	return func(s *Store) {
		s.jar = jar
	}
}

func WithCookieTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.cookieTTL = ttl
		}
	}
}

// WithSecureCookie marks the credential cookie Secure, as in production.
func WithSecureCookie(secure bool) StoreOption {
	return func(s *Store) {
		s.secure = secure
	}
}

func WithStoreNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func WithStoreLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(kv KV, options ...StoreOption) (*Store, error) {
	if kv == nil {
		return nil, errors.New("[NewStore] kv is required")
	}

	s := &Store{
		kv:        kv,
		cookieTTL: defaultCookieTTL,
		nowTime:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Jar returns the cookie jar, which may be nil.
func (s *Store) Jar() *CookieJar {
	return s.jar
}

func (s *Store) Set(key, value string) error {
	return errors.Wrapf(s.kv.Set(key, value), "[Store.Set] %s", key)
}

func (s *Store) Get(key string) (string, bool) {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("credential store read failed")
		return "", false
	}
	return v, ok
}

func (s *Store) Clear(key string) error {
	return errors.Wrapf(s.kv.Delete(key), "[Store.Clear] %s", key)
}

// Token returns the persisted access token. The cookie is consulted when the
// durable copy is missing.
func (s *Store) Token() (string, bool) {
	if v, ok := s.Get(TokenKey); ok && v != "" {
		return v, true
	}
	if s.jar != nil {
		if c, ok := s.jar.Get(TokenKey); ok && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// User returns the persisted user. Malformed values read as absent.
func (s *Store) User() (*users.User, bool) {
	raw, ok := s.Get(UserKey)
	if !ok || raw == "" {
		return nil, false
	}

	var u users.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.Warn().Err(err).Msg("persisted user unreadable, ignoring")
		return nil, false
	}
	return &u, true
}

// SaveToken persists token durably and as a cookie. The cookie lives for the
// configured TTL or until expires, whichever comes first; a zero expires means the
// token carries no expiry.
func (s *Store) SaveToken(token string, expires time.Time) error {
	if err := s.Set(TokenKey, token); err != nil {
		return err
	}
	if s.jar == nil {
		return nil
	}

	cookieExpiry := s.nowTime().Add(s.cookieTTL)
	if !expires.IsZero() && expires.Before(cookieExpiry) {
		cookieExpiry = expires
	}
	err := s.jar.Set(Cookie{
		Name:     TokenKey,
		Value:    token,
		Path:     "/",
		Expires:  cookieExpiry,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Local:    true,
	})
	return errors.Wrap(err, "[Store.SaveToken] cookie")
}

func (s *Store) SaveUser(user users.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[Store.SaveUser] marshal")
	}
	return s.Set(UserKey, string(data))
}

// ClearToken removes the token and the credential cookie. Both removals are
// attempted; the first failure is returned.
func (s *Store) ClearToken() error {
	first := s.Clear(TokenKey)
	if s.jar != nil {
		if err := s.jar.Remove(TokenKey); err != nil && first == nil {
			first = errors.Wrap(err, "[Store.ClearToken] cookie")
		}
	}
	return first
}

func (s *Store) ClearUser() error {
	return s.Clear(UserKey)
}

// ClearAll removes the token, the user and the credential cookie. Every removal is
// attempted; the first failure is returned.
func (s *Store) ClearAll() error {
	first := s.ClearToken()
	if err := s.ClearUser(); err != nil && first == nil {
		first = err
	}
	return first
}
