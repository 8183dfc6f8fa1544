package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the durable mirror of the session credential.
type Store interface {
	Token() (string, bool)
	User() (*users.User, bool)
	SaveToken(token string, expires time.Time) error
	SaveUser(user users.User) error
	ClearToken() error
	ClearUser() error
	ClearAll() error
}

// ErrStale is returned by Succeed for an operation that was superseded or torn
// down by a forced clear.
var ErrStale = errors.New("operation is no longer current")

// PersistFailedMessage is the session error left by a success that could not be
// written to the store.
const PersistFailedMessage = "Failed to save session"

// Listener receives every Change in mutation order. Listeners run on the goroutine
// that made the change, after the state lock is released, and must not call the
// Machine's mutating methods.
type Listener func(Change)

type subscription struct {
	id uint64
	fn Listener
}

// Machine owns the session. All state lives behind one mutex and every mutation
// writes through to the Store before the lock is released. A write the Store
// refuses leaves memory as it was; a forced clear empties memory regardless and
// reports the Store error.
type Machine struct {
	mu       sync.Mutex
	store    Store
	token    string
	user     *users.User
	errMsg   string
	inflight map[Kind]Operation
	seq      uint64
	epoch    uint64
	version  uint64

	listeners []subscription
	nextSubID uint64
	pending   []Change
	notifyMu  sync.Mutex

	expiry  func(string) time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// MachineOption defines a function type to modify the Machine instance.
type MachineOption func(*Machine)

func WithLogger(logger zerolog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

func WithMetrics(mt *metrics.Metrics) MachineOption {
	return func(m *Machine) {
		m.metrics = mt
	}
}

// WithTokenExpiry overrides how a token's expiry is read when it is persisted.
func WithTokenExpiry(expiry func(string) time.Time) MachineOption {
	return func(m *Machine) {
		if expiry != nil {
			m.expiry = expiry
		}
	}
}

// New hydrates a Machine from store. Token and user are read independently; a
// token without a user is kept but does not authenticate.
func New(store Store, options ...MachineOption) (*Machine, error) {
	if store == nil {
		return nil, errors.New("[sessions.New] store is required")
	}

	m := &Machine{
		store:    store,
		inflight: map[Kind]Operation{},
		expiry:   token.Expiry,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}

	if tok, ok := store.Token(); ok {
		m.token = tok
		m.epoch++
	}
	if u, ok := store.User(); ok {
		m.user = u
	}
	m.version++

	m.logger.Debug().
		Bool("has_token", m.token != "").
		Bool("has_user", m.user != nil).
		Msg("session hydrated")
	return m, nil
}

// Snapshot returns the current session.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Credential returns the current token and the epoch it belongs to.
func (m *Machine) Credential() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.epoch
}

// Subscribe registers fn for every later Change. The returned func removes it.
func (m *Machine) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.listeners = append(m.listeners, subscription{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.listeners {
			if s.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start begins an operation of kind, superseding any in-flight operation of the
// same kind. The loading flag is set and the error cleared before Start returns.
func (m *Machine) Start(kind Kind) Operation {
	m.mu.Lock()
	op := m.startLocked(kind)
	m.mu.Unlock()

	m.flush()
	return op
}

// StartIfIdle starts an operation only when the session is neither authenticated
// nor loading.
func (m *Machine) StartIfIdle(kind Kind) (Operation, bool) {
	m.mu.Lock()
	if m.authenticatedLocked() || len(m.inflight) > 0 {
		m.mu.Unlock()
		return Operation{}, false
	}
	op := m.startLocked(kind)
	m.mu.Unlock()

	m.flush()
	return op, true
}

// Succeed completes op. A non-nil user replaces the cached one and a non-empty token
// replaces the credential. It returns ErrStale, changing nothing, when op has been
// superseded or torn down by a forced clear. When the store refuses the write the
// operation fails instead and the previous credential is kept.
func (m *Machine) Succeed(op Operation, user *users.User, tok string) error {
	m.mu.Lock()
	if !m.currentLocked(op) {
		m.mu.Unlock()
		m.logger.Debug().Str("op", string(op.Kind)).Str("op_id", op.ID).Msg("stale success discarded")
		return ErrStale
	}

	from := m.phaseLocked()
	delete(m.inflight, op.Kind)

	if err := m.persistLocked(user, tok); err != nil {
		m.errMsg = PersistFailedMessage
		m.recordLocked(from, m.phaseLocked(), ReasonFailure)
		m.mu.Unlock()

		m.flush()
		return err
	}

	m.errMsg = ""
	if tok != "" && tok != m.token {
		m.token = tok
		m.epoch++
	}
	if user != nil {
		u := *user
		m.user = &u
	}
	m.recordLocked(from, m.phaseLocked(), ReasonSuccess)
	m.mu.Unlock()

	m.flush()
	return nil
}

// Fail completes op with message. The existing token and user are left alone.
// It returns false when op is stale.
func (m *Machine) Fail(op Operation, message string) bool {
	m.mu.Lock()
	if !m.currentLocked(op) {
		m.mu.Unlock()
		m.logger.Debug().Str("op", string(op.Kind)).Str("op_id", op.ID).Msg("stale failure discarded")
		return false
	}

	from := m.phaseLocked()
	delete(m.inflight, op.Kind)
	m.errMsg = message
	m.recordLocked(from, m.phaseLocked(), ReasonFailure)
	m.mu.Unlock()

	m.flush()
	return true
}

// ClearError drops the last failure message.
func (m *Machine) ClearError() {
	m.mu.Lock()
	if m.errMsg == "" {
		m.mu.Unlock()
		return
	}
	from := m.phaseLocked()
	m.errMsg = ""
	m.recordLocked(from, from, ReasonClearError)
	m.mu.Unlock()

	m.flush()
}

// ForceClear tears the session down: token, user, error and every in-flight
// operation are discarded and the store is cleared. Memory is cleared even when the
// store is not; the store error is returned.
func (m *Machine) ForceClear(reason Reason) error {
	m.mu.Lock()
	err := m.forceClearLocked(reason)
	m.mu.Unlock()

	m.flush()
	return err
}

// ForceClearIfCurrent clears the session only if epoch is still the current
// credential epoch and a token or cached user is held. Of any number of callers
// presenting the same epoch exactly one gets true.
func (m *Machine) ForceClearIfCurrent(epoch uint64, reason Reason) (bool, error) {
	m.mu.Lock()
	if epoch != m.epoch || (m.token == "" && m.user == nil) {
		m.mu.Unlock()
		return false, nil
	}
	err := m.forceClearLocked(reason)
	m.mu.Unlock()

	m.flush()
	return true, err
}

func (m *Machine) startLocked(kind Kind) Operation {
	from := m.phaseLocked()

	m.seq++
	op := Operation{
		ID:    uuid.NewString(),
		Kind:  kind,
		seq:   m.seq,
		epoch: m.epoch,
	}
	if prev, ok := m.inflight[kind]; ok {
		m.logger.Debug().Str("op", string(kind)).Str("op_id", prev.ID).Msg("operation superseded")
	}
	m.inflight[kind] = op
	m.errMsg = ""

	m.recordLocked(from, m.phaseLocked(), ReasonStart)
	return op
}

func (m *Machine) forceClearLocked(reason Reason) error {
	from := m.phaseLocked()

	m.token = ""
	m.user = nil
	m.errMsg = ""
	m.inflight = map[Kind]Operation{}
	m.epoch++

	err := m.store.ClearAll()
	if err != nil {
		m.logger.Error().Err(err).Str("reason", string(reason)).Msg("failed to clear credential store")
		err = errors.Wrap(err, "[ForceClear] clear credential store")
	}
	m.metrics.ForcedClear(string(reason))
	m.logger.Info().Str("reason", string(reason)).Msg("session cleared")

	if reason == ReasonRejected {
		m.recordLocked(from, Expired, reason)
		from = Expired
	}
	m.recordLocked(from, Unauthenticated, reason)
	return err
}

// persistLocked writes user and tok through to the store before memory changes.
// On failure the store is rewritten from the credential still held in memory.
func (m *Machine) persistLocked(user *users.User, tok string) error {
	if tok != "" && tok != m.token {
		if err := m.store.SaveToken(tok, m.expiry(tok)); err != nil {
			m.restoreLocked()
			return errors.Wrap(err, "[Succeed] persist token")
		}
	}
	if user != nil {
		if err := m.store.SaveUser(*user); err != nil {
			m.restoreLocked()
			return errors.Wrap(err, "[Succeed] persist user")
		}
	}
	return nil
}

func (m *Machine) restoreLocked() {
	var err error
	if m.token != "" {
		err = m.store.SaveToken(m.token, m.expiry(m.token))
	} else {
		err = m.store.ClearToken()
	}
	if err == nil {
		if m.user != nil {
			err = m.store.SaveUser(*m.user)
		} else {
			err = m.store.ClearUser()
		}
	}
	if err != nil {
		m.logger.Error().Err(err).Msg("credential store out of step with session")
	}
}

func (m *Machine) currentLocked(op Operation) bool {
	cur, ok := m.inflight[op.Kind]
	return ok && cur.seq == op.seq
}

func (m *Machine) authenticatedLocked() bool {
	return m.token != "" && m.user != nil
}

func (m *Machine) phaseLocked() Phase {
	switch {
	case len(m.inflight) > 0:
		return Authenticating
	case m.authenticatedLocked():
		return Authenticated
	default:
		return Unauthenticated
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		Token:   m.token,
		Loading: len(m.inflight) > 0,
		Error:   m.errMsg,
		Version: m.version,
		Phase:   m.phaseLocked(),
	}
	if m.user != nil {
		u := *m.user
		s.User = &u
	}
	return s
}

// recordLocked bumps the version and queues a Change for delivery by flush.
func (m *Machine) recordLocked(from, to Phase, reason Reason) {
	m.version++
	snap := m.snapshotLocked()
	if to == Expired {
		snap.Phase = Expired
	}
	m.pending = append(m.pending, Change{Snapshot: snap, From: from, To: to, Reason: reason})
}

// flush delivers queued changes. notifyMu serialises delivery so listeners see
// changes in the order they were recorded, and a mutating call does not return
// until its own changes have been delivered.
func (m *Machine) flush() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	for {
		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		listeners := append([]subscription(nil), m.listeners...)
		m.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, c := range batch {
			for _, s := range listeners {
				s.fn(c)
			}
		}
	}
}
