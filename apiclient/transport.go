package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/oauth2"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultLoginPath = "/auth/login"

// Session is the part of the session the transport reads and clears.
type Session interface {
	Credential() (token string, epoch uint64)
	ForceClearIfCurrent(epoch uint64, reason sessions.Reason) (bool, error)
}

type bearerKey struct{}

// WithBearer makes requests made with ctx carry token instead of the session
// credential. A rejection of such a request leaves the session alone.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}

// Transport attaches the session credential to outgoing requests and tears the
// session down when the API rejects it.
type Transport struct {
	base      http.RoundTripper
	session   Session
	loginPath string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// TransportOption defines a function type to modify the Transport instance.
type TransportOption func(*Transport)

// WithBase sets the RoundTripper requests are forwarded to.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithLoginPath sets the path of the login endpoint, which never carries a
// credential and never triggers a clear.
func WithLoginPath(path string) TransportOption {
	return func(t *Transport) {
		if path != "" {
			t.loginPath = path
		}
	}
}

func WithTransportMetrics(mt *metrics.Metrics) TransportOption {
	return func(t *Transport) {
		t.metrics = mt
	}
}

func WithTransportLogger(logger zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

func NewTransport(session Session, options ...TransportOption) (*Transport, error) {
	if session == nil {
		return nil, errors.New("[NewTransport] session is required")
	}

	t := &Transport{
		base:      http.DefaultTransport,
		session:   session,
		loginPath: defaultLoginPath,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.isLogin(req) {
		return t.base.RoundTrip(req)
	}

	var (
		epoch    uint64
		guarded  bool
		attached bool
	)

	out := req
	switch override, ok := bearerFromContext(req.Context()); {
	case ok:
		out = req.Clone(req.Context())
		out.Header.Set("Authorization", oauth2.AuthorizationHeader(override))
	case req.Header.Get("Authorization") != "":
		// Caller supplied its own credential.
	default:
		token, ep := t.session.Credential()
		if token != "" {
			out = req.Clone(req.Context())
			out.Header.Set("Authorization", oauth2.AuthorizationHeader(token))
			attached = true
		}
		epoch, guarded = ep, true
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && guarded {
		cleared, clearErr := t.session.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
		if attached || cleared {
			t.metrics.Rejection()
		}
		if clearErr != nil {
			t.logger.Error().Err(clearErr).Str("path", req.URL.Path).Msg("rejected credential left in the store")
		}
		if cleared {
			t.logger.Warn().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Msg("credential rejected, session cleared")
		}
	}
	return resp, nil
}

func (t *Transport) isLogin(req *http.Request) bool {
	return req.URL != nil && strings.Contains(req.URL.Path, t.loginPath)
}
