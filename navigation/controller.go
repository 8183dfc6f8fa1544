package navigation

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionSource is the read side of the session the controller observes.
type SessionSource interface {
	Snapshot() sessions.Snapshot
	Subscribe(fn sessions.Listener) func()
}

type evalKey struct {
	path          string
	authenticated bool
}

// Controller keeps the current location consistent with the session. It
// re-evaluates the guard on every navigation and every session change.
type Controller struct {
	mu          sync.Mutex
	guard       *Guard
	session     SessionSource
	nav         Navigator
	current     string
	last        *evalKey
	seen        sessions.Snapshot
	unsubscribe func()

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

func WithMetrics(mt *metrics.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = mt
	}
}

func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a Controller positioned at initial. Nothing is evaluated
// until Start.
func NewController(guard *Guard, session SessionSource, nav Navigator, initial string, options ...ControllerOption) (*Controller, error) {
	if guard == nil {
		return nil, errors.New("[NewController] guard is required")
	}
	if session == nil {
		return nil, errors.New("[NewController] session is required")
	}
	if nav == nil {
		return nil, errors.New("[NewController] navigator is required")
	}

	c := &Controller{
		guard:   guard,
		session: session,
		nav:     nav,
		current: Clean(initial),
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Start subscribes to session changes and evaluates the initial location.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe == nil {
		c.unsubscribe = c.session.Subscribe(c.onChange)
	}
	c.evaluateLocked(c.current, c.newestLocked(c.session.Snapshot()))
}

// Stop detaches the controller from the session.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Navigate moves to p, or to wherever the guard sends p. It returns the resulting
// location.
func (c *Controller) Navigate(p string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	p = Clean(p)
	c.current = p
	c.evaluateLocked(p, c.newestLocked(c.session.Snapshot()))
	return c.current
}

func (c *Controller) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Controller) onChange(change sessions.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Already superseded by a snapshot read in Navigate or Start.
	if change.Snapshot.Version < c.seen.Version {
		return
	}
	c.seen = change.Snapshot

	if change.Reason.Forced() {
		if change.To != sessions.Unauthenticated {
			return
		}
		login := c.guard.LoginPath()
		c.last = &evalKey{path: login, authenticated: false}
		if c.current != login {
			c.redirectLocked(login, string(change.Reason))
		}
		return
	}
	c.evaluateLocked(c.current, change.Snapshot)
}

// newestLocked returns snap, or the newest snapshot already applied when snap is
// older.
func (c *Controller) newestLocked(snap sessions.Snapshot) sessions.Snapshot {
	if snap.Version < c.seen.Version {
		return c.seen
	}
	c.seen = snap
	return snap
}

// evaluateLocked applies the guard to p. Loading sessions are left alone, and an
// input identical to the previous evaluation is ignored.
func (c *Controller) evaluateLocked(p string, snap sessions.Snapshot) {
	if snap.Loading {
		return
	}

	key := evalKey{path: p, authenticated: snap.IsAuthenticated()}
	if c.last != nil && *c.last == key {
		return
	}
	c.last = &key

	if target, ok := c.guard.Redirect(p, snap); ok {
		c.redirectLocked(target, "guard")
		c.last = &evalKey{path: target, authenticated: key.authenticated}
	}
}

func (c *Controller) redirectLocked(target, cause string) {
	c.logger.Debug().Str("from", c.current).Str("to", target).Str("cause", cause).Msg("redirect")
	c.current = target
	c.metrics.Redirect(target)
	c.nav.Replace(target)
}
