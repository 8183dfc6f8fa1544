package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/credstore"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App is one running instance of the admin client: a single session with its
// store, API client, auth service and navigation controller.
type App struct {
	Config   config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    *credstore.Store
	Session  *sessions.Machine
	API      *apiclient.Client
	Auth     *auth.Service
	Guard    *navigation.Guard
	History  *navigation.History
	Router   *navigation.Controller

	logger zerolog.Logger
	closer io.Closer
}

type options struct {
	kv          credstore.KV
	registry    *prometheus.Registry
	base        http.RoundTripper
	initialPath string
	nowTime     func() time.Time
	logger      zerolog.Logger
}

// Option defines a function type to modify how an App is assembled.
type Option func(*options)

// WithKV replaces the configured store backend.
func WithKV(kv credstore.KV) Option {
	return func(o *options) {
		o.kv = kv
	}
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithBaseTransport sets the RoundTripper beneath the credential interceptor.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// WithInitialPath sets the location the router starts at. Defaults to "/".
func WithInitialPath(p string) Option {
	return func(o *options) {
		o.initialPath = p
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *options) {
		o.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New wires every component from cfg. The session is hydrated from the store
// but nothing is resumed or routed until Start.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("[app.New] config is required")
	}

	o := options{
		initialPath: navigation.RouteRoot,
		nowTime:     time.Now,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	a := &App{Config: cfg, Registry: o.registry, logger: o.logger}
	var err error

	if a.Metrics, err = metrics.New(o.registry); err != nil {
		return nil, errors.Wrap(err, "[app.New] failed to register metrics")
	}

	kv := o.kv
	if kv == nil {
		key, keyErr := cfg.GetStoreKey()
		if keyErr != nil {
			return nil, errors.Wrap(keyErr, "[app.New] invalid store configuration")
		}
		var closer io.Closer
		kv, closer, err = credstore.Open(cfg.GetStoreDriver(), cfg.GetStorePath(), key)
		if err != nil {
			return nil, errors.Wrap(err, "[app.New] failed to open credential store")
		}
		a.closer = closer
	}

	jar, err := credstore.NewCookieJar(kv, cfg.GetAPIBaseURL(),
		credstore.WithCookieNowTime(o.nowTime),
		credstore.WithCookieLogger(o.logger))
	if err != nil {
		return nil, a.abort(errors.Wrap(err, "[app.New] failed to load cookie jar"))
	}

	a.Store, err = credstore.NewStore(kv,
		credstore.WithCookieJar(jar),
		credstore.WithCookieTTL(time.Duration(cfg.GetCookieDays())*24*time.Hour),
		credstore.WithSecureCookie(cfg.IsProduction()),
		credstore.WithStoreNowTime(o.nowTime),
		credstore.WithStoreLogger(o.logger))
	if err != nil {
		return nil, a.abort(err)
	}

	a.Session, err = sessions.New(a.Store,
		sessions.WithMetrics(a.Metrics),
		sessions.WithLogger(o.logger))
	if err != nil {
		return nil, a.abort(err)
	}

	transportOpts := []apiclient.TransportOption{
		apiclient.WithLoginPath(cfg.GetLoginPath()),
		apiclient.WithTransportMetrics(a.Metrics),
		apiclient.WithTransportLogger(o.logger),
	}
	if o.base != nil {
		transportOpts = append(transportOpts, apiclient.WithBase(o.base))
	}
	transport, err := apiclient.NewTransport(a.Session, transportOpts...)
	if err != nil {
		return nil, a.abort(err)
	}

	a.API, err = apiclient.NewClient(cfg.GetAPIBaseURL(), transport,
		apiclient.WithTimeout(cfg.GetAPITimeout()),
		apiclient.WithCookieJar(jar),
		apiclient.WithClientLogger(o.logger))
	if err != nil {
		return nil, a.abort(err)
	}

	a.Auth, err = auth.NewService(a.Session, a.Store, a.API,
		auth.WithEndpoints(auth.Endpoints{
			Login:    cfg.GetLoginPath(),
			Register: cfg.GetRegisterPath(),
			Profile:  cfg.GetProfilePath(),
		}),
		auth.WithNowTime(o.nowTime),
		auth.WithMetrics(a.Metrics),
		auth.WithLogger(o.logger))
	if err != nil {
		return nil, a.abort(err)
	}

	a.Guard = navigation.NewGuard(
		navigation.WithLoginPath(cfg.GetLoginRoute()),
		navigation.WithRegisterPath(cfg.GetRegisterRoute()),
		navigation.WithLandingPath(cfg.GetLandingRoute()))
	a.History = navigation.NewHistory(o.initialPath)
	a.Router, err = navigation.NewController(a.Guard, a.Session, a.History, o.initialPath,
		navigation.WithMetrics(a.Metrics),
		navigation.WithLogger(o.logger))
	if err != nil {
		return nil, a.abort(err)
	}

	return a, nil
}

// Start resumes a stored session when one is not already active, then starts
// routing. A failed resume leaves the app unauthenticated and is not an error.
func (a *App) Start(ctx context.Context) error {
	if !a.Session.Snapshot().IsAuthenticated() {
		if err := a.Auth.ResumeSession(ctx); err != nil {
			var authErr *auth.Error
			if !errors.As(err, &authErr) {
				return errors.Wrap(err, "[App.Start] resume failed")
			}
			a.logger.Debug().Str("kind", string(authErr.Kind)).Msg(authErr.Message)
		}
	}
	a.Router.Start()
	return nil
}

// Close stops routing and releases the store backend.
func (a *App) Close() error {
	if a.Router != nil {
		a.Router.Stop()
	}
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func (a *App) abort(err error) error {
	if a.closer != nil {
		_ = a.closer.Close()
	}
	return err
}
