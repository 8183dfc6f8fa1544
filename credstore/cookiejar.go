package credstore

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Cookie is the persisted form of a cookie held by the jar.
type Cookie struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Path     string        `json:"path,omitempty"`
	Expires  time.Time     `json:"expires,omitempty"`
	Secure   bool          `json:"secure,omitempty"`
	HttpOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
	Local    bool          `json:"local,omitempty"` // Written by this client; never sent with requests
}

func (c Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// CookieJar is an http.CookieJar scoped to a single API host. Cookies set by that
// host, or by the client itself, are persisted through a KV so they outlive the
// process. Host cookies are sent on every matching request; local ones are not.
type CookieJar struct {
	mu      sync.Mutex
	kv      KV
	host    string
	cookies map[string]Cookie
	nowTime func() time.Time
	logger  zerolog.Logger
}

var _ http.CookieJar = (*CookieJar)(nil)

// CookieJarOption defines a function type to modify a CookieJar.
type CookieJarOption func(*CookieJar)

func WithCookieNowTime(nowFunc func() time.Time) CookieJarOption {
	return func(j *CookieJar) {
		j.nowTime = nowFunc
	}
}

func WithCookieLogger(logger zerolog.Logger) CookieJarOption {
	return func(j *CookieJar) {
		j.logger = logger
	}
}

// NewCookieJar loads any persisted cookies for origin from kv.
func NewCookieJar(kv KV, origin string, options ...CookieJarOption) (*CookieJar, error) {
	if kv == nil {
		return nil, errors.New("[NewCookieJar] kv is required")
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return nil, errors.Errorf("[NewCookieJar] invalid origin %q", origin)
	}

	j := &CookieJar{
		kv:      kv,
		host:    strings.ToLower(u.Hostname()),
		cookies: map[string]Cookie{},
		nowTime: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(j)
	}

	raw, ok, err := kv.Get(cookieKey)
	if err != nil {
		return nil, errors.Wrap(err, "[NewCookieJar] load cookies")
	}
	if ok {
		var stored []Cookie
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			j.logger.Warn().Err(err).Msg("persisted cookies unreadable, discarding")
		}
		for _, c := range stored {
			j.cookies[c.Name] = c
		}
	}
	return j, nil
}

// SetCookies implements http.CookieJar. Cookies from other hosts are ignored.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !j.matchesHost(u) || len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.nowTime()
	for _, hc := range cookies {
		c := Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Path:     hc.Path,
			Expires:  hc.Expires,
			Secure:   hc.Secure,
			HttpOnly: hc.HttpOnly,
			SameSite: hc.SameSite,
		}
		if hc.MaxAge > 0 {
			c.Expires = now.Add(time.Duration(hc.MaxAge) * time.Second)
		}
		if existing, ok := j.cookies[c.Name]; ok && existing.Local {
			continue
		}
		if hc.MaxAge < 0 || c.expired(now) {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = c
	}

	if err := j.persistLocked(); err != nil {
		j.logger.Error().Err(err).Msg("failed to persist cookies")
	}
}

// Cookies implements http.CookieJar. Secure cookies are only returned for https.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	if !j.matchesHost(u) {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.dropExpiredLocked()

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	var out []*http.Cookie
	for _, c := range j.cookies {
		if c.Local {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		if c.Path != "" && !strings.HasPrefix(path, c.Path) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Set stores c, replacing any cookie of the same name.
func (j *CookieJar) Set(c Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies[c.Name] = c
	return j.persistLocked()
}

// Get returns the named cookie if it is present and unexpired.
func (j *CookieJar) Get(name string) (Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.dropExpiredLocked()
	c, ok := j.cookies[name]
	return c, ok
}

func (j *CookieJar) Remove(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.cookies[name]; !ok {
		return nil
	}
	delete(j.cookies, name)
	return j.persistLocked()
}

func (j *CookieJar) matchesHost(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Hostname(), j.host)
}

func (j *CookieJar) dropExpiredLocked() {
	now := j.nowTime()
	dropped := false
	for name, c := range j.cookies {
		if c.expired(now) {
			delete(j.cookies, name)
			dropped = true
		}
	}
	if dropped {
		if err := j.persistLocked(); err != nil {
			j.logger.Error().Err(err).Msg("failed to persist cookies")
		}
	}
}

func (j *CookieJar) persistLocked() error {
	if len(j.cookies) == 0 {
		return errors.Wrap(j.kv.Delete(cookieKey), "[CookieJar] delete cookies")
	}

	stored := make([]Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		stored = append(stored, c)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return errors.Wrap(err, "[CookieJar] marshal cookies")
	}
	return errors.Wrap(j.kv.Set(cookieKey, string(data)), "[CookieJar] save cookies")
}
