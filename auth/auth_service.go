package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/credstore"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/oauth2"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

// Machine is the session state machine the service drives.
type Machine interface {
	Start(kind sessions.Kind) sessions.Operation
	StartIfIdle(kind sessions.Kind) (sessions.Operation, bool)
	Succeed(op sessions.Operation, user *users.User, token string) error
	Fail(op sessions.Operation, message string) bool
	ForceClear(reason sessions.Reason) error
	ClearError()
	Snapshot() sessions.Snapshot
}

// CredentialStore is the durable store read when resuming a session.
type CredentialStore interface {
	Get(key string) (string, bool)
	Token() (string, bool)
	User() (*users.User, bool)
}

// Endpoints are the API paths, relative to the client's base URL.
type Endpoints struct {
	Login    string
	Register string
	// Profile is optional. When empty the user is synthesized from the
	// submitted credentials after login.
	Profile string
}

// DefaultEndpoints match the farm admin API.
var DefaultEndpoints = Endpoints{
	Login:    "/auth/login",
	Register: "/auth/register",
}

// Service orchestrates login, registration, resume and logout on top of the
// session state machine.
type Service struct {
	machine   Machine
	store     CredentialStore
	api       *apiclient.Client
	endpoints Endpoints
	nowTime   func() time.Time
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithEndpoints(e Endpoints) ServiceOption {
	return func(s *Service) {
		if e.Login != "" {
			s.endpoints.Login = e.Login
		}
		if e.Register != "" {
			s.endpoints.Register = e.Register
		}
		s.endpoints.Profile = e.Profile
	}
}

func WithMetrics(mt *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = mt
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(machine Machine, store CredentialStore, api *apiclient.Client, options ...ServiceOption) (*Service, error) {
	if machine == nil {
		return nil, errors.New("[NewService] session machine is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] credential store is required")
	}
	if api == nil {
		return nil, errors.New("[NewService] api client is required")
	}

	s := &Service{
		machine:   machine,
		store:     store,
		api:       api,
		endpoints: DefaultEndpoints,
		nowTime:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Session returns the current session snapshot.
func (s *Service) Session() sessions.Snapshot {
	return s.machine.Snapshot()
}

// Login exchanges creds for an access token with the password grant. The login
// request never carries the session credential.
func (s *Service) Login(ctx context.Context, creds users.Credentials) (*users.User, error) {
	op := s.machine.Start(sessions.KindLogin)
	creds.Username = strings.TrimSpace(creds.Username)

	if err := creds.Validate(); err != nil {
		return nil, s.fail(op, &Error{Kind: KindValidation, Message: err.Error()})
	}

	conf := &xoauth2.Config{
		Endpoint: xoauth2.Endpoint{
			TokenURL:  s.api.URL(s.endpoints.Login),
			AuthStyle: xoauth2.AuthStyleInParams,
		},
	}
	tokenCtx := context.WithValue(ctx, xoauth2.HTTPClient, s.api.HTTPClient())

	tok, err := conf.PasswordCredentialsToken(tokenCtx, creds.Username, creds.Password)
	if err != nil {
		return nil, s.fail(op, loginError(err))
	}

	user := s.identify(ctx, creds, tok.AccessToken)
	if err := s.machine.Succeed(op, &user, tok.AccessToken); err != nil {
		return nil, s.completionError(op, err)
	}

	s.metrics.Operation(string(sessions.KindLogin), "success")
	s.logger.Info().Str("username", user.Username).Str("op_id", op.ID).Msg("logged in")
	return &user, nil
}

// Register creates an account. The returned identity is cached, but no token is
// invented: the session only becomes authenticated if one already existed.
func (s *Service) Register(ctx context.Context, profile users.Profile) (*users.User, error) {
	op := s.machine.Start(sessions.KindRegister)
	profile.Username = strings.TrimSpace(profile.Username)
	profile.Email = strings.TrimSpace(profile.Email)

	if err := profile.Validate(); err != nil {
		return nil, s.fail(op, &Error{Kind: KindValidation, Message: err.Error()})
	}

	var created users.User
	if err := s.api.Post(ctx, s.endpoints.Register, profile, &created); err != nil {
		return nil, s.fail(op, apiError(err, MsgRegistrationFailed))
	}
	if created.Username == "" {
		created.Username = profile.Username
	}

	if err := s.machine.Succeed(op, &created, ""); err != nil {
		return nil, s.completionError(op, err)
	}

	s.metrics.Operation(string(sessions.KindRegister), "success")
	s.logger.Info().Str("username", created.Username).Str("op_id", op.ID).Msg("registered")
	return &created, nil
}

// ResumeSession restores the session from the durable store without touching the
// network. It is a no-op while authenticated or while another operation is in
// flight. A missing or unreadable user fails the resume but leaves the stored
// token in place.
func (s *Service) ResumeSession(ctx context.Context) error {
	op, started := s.machine.StartIfIdle(sessions.KindResume)
	if !started {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return s.fail(op, &Error{Kind: KindTransport, Message: MsgUserDataFailed, Err: err})
	}

	user, ok := s.store.User()
	if !ok {
		if _, present := s.store.Get(credstore.UserKey); present {
			return s.fail(op, &Error{Kind: KindNoUserData, Message: MsgUserDataFailed})
		}
		return s.fail(op, &Error{Kind: KindNoUserData, Message: MsgNoUserData})
	}
	tok, _ := s.store.Token()

	if err := s.machine.Succeed(op, user, tok); err != nil {
		return s.completionError(op, err)
	}
	s.metrics.Operation(string(sessions.KindResume), "success")
	return nil
}

// Logout clears the session and the store. Observers of the session, the route
// guard included, are notified before Logout returns. The in-memory session is
// always cleared; an error means the store still holds the credential and a
// restart would bring it back.
func (s *Service) Logout() error {
	if err := s.machine.ForceClear(sessions.ReasonLogout); err != nil {
		s.metrics.Operation("logout", string(KindStorage))
		s.logger.Error().Err(err).Msg("logout left credentials in the store")
		return &Error{Kind: KindStorage, Message: MsgLogoutIncomplete, Err: err}
	}
	s.metrics.Operation("logout", "success")
	return nil
}

func (s *Service) ClearError() {
	s.machine.ClearError()
}

// identify returns the profile of the freshly logged in user, falling back to one
// synthesized from creds and the token's claims.
func (s *Service) identify(ctx context.Context, creds users.Credentials, accessToken string) users.User {
	fallback := s.synthesize(creds, accessToken)
	if s.endpoints.Profile == "" {
		return fallback
	}

	var profile users.User
	err := s.api.Get(apiclient.WithBearer(ctx, accessToken), s.endpoints.Profile, &profile)
	if err != nil || profile.Username == "" {
		s.logger.Warn().Err(err).Msg("profile fetch failed, using synthesized user")
		return fallback
	}
	return profile
}

// synthesize builds the user from creds. A JWT access token's sub and is_admin
// claims take precedence over the submitted username and the "admin" convention.
func (s *Service) synthesize(creds users.Credentials, accessToken string) users.User {
	info, err := token.Inspect(accessToken)
	if err != nil {
		return users.FromCredentials(creds, s.nowTime())
	}
	if sub := utils.Value(info.Sub); sub != "" {
		creds.Username = sub
	}
	u := users.FromCredentials(creds, s.nowTime())
	if info.Admin != nil {
		u.IsAdmin = *info.Admin
	}
	return u
}

func (s *Service) fail(op sessions.Operation, e *Error) error {
	if !s.machine.Fail(op, e.Message) {
		return s.superseded(op)
	}
	s.metrics.Operation(string(op.Kind), string(e.Kind))
	s.logger.Warn().
		Str("op", string(op.Kind)).
		Str("op_id", op.ID).
		Str("kind", string(e.Kind)).
		Msg(e.Message)
	return e
}

// completionError maps a refused Succeed onto an Error. The machine has already
// recorded the failure when the store refused the write.
func (s *Service) completionError(op sessions.Operation, err error) error {
	if errors.Is(err, sessions.ErrStale) {
		return s.superseded(op)
	}
	s.metrics.Operation(string(op.Kind), string(KindStorage))
	s.logger.Error().Err(err).Str("op", string(op.Kind)).Str("op_id", op.ID).Msg("session could not be saved")
	return &Error{Kind: KindStorage, Message: MsgSaveFailed, Err: err}
}

func (s *Service) superseded(op sessions.Operation) error {
	s.metrics.Operation(string(op.Kind), string(KindSuperseded))
	return &Error{Kind: KindSuperseded, Message: MsgSuperseded}
}

// loginError maps a token endpoint failure onto an Error.
func loginError(err error) *Error {
	var retrieve *xoauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve.Response != nil {
		if retrieve.Response.StatusCode >= http.StatusInternalServerError {
			return &Error{Kind: KindTransport, Message: MsgLoginFailed, Err: err}
		}
		msg := oauth2.ParseErrorResponse(retrieve.Body)
		if msg == "" {
			msg = MsgLoginFailed
		}
		return &Error{Kind: KindCredentialInvalid, Message: msg, Err: err}
	}
	return &Error{Kind: KindTransport, Message: MsgLoginFailed, Err: errors.Wrap(err, "[Login] token request")}
}

// apiError maps an apiclient failure onto an Error.
func apiError(err error, fallback string) *Error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		msg := apiErr.Detail
		if msg == "" {
			msg = fallback
		}
		return &Error{Kind: KindCredentialInvalid, Message: msg, Err: err}
	}
	return &Error{Kind: KindTransport, Message: fallback, Err: err}
}
