package navigation_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/credstore"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// countingNavigator records every Replace call.
type countingNavigator struct {
	*navigation.History
	calls int
}

func (n *countingNavigator) Replace(p string) {
	n.calls++
	n.History.Replace(p)
}

type controllerFixture struct {
	store      *credstore.Store
	machine    *sessions.Machine
	nav        *countingNavigator
	metrics    *metrics.Metrics
	controller *navigation.Controller
}

func setupControllerFixture(t *testing.T, initial string, seed func(*credstore.Store)) *controllerFixture {
	t.Helper()

	store, err := credstore.NewStore(credstore.NewMemoryKV())
	require.NoError(t, err)
	if seed != nil {
		seed(store)
	}

	machine, err := sessions.New(store)
	require.NoError(t, err)

	mt, err := metrics.New(nil)
	require.NoError(t, err)

	nav := &countingNavigator{History: navigation.NewHistory(initial)}
	c, err := navigation.NewController(navigation.NewGuard(), machine, nav, initial, navigation.WithMetrics(mt))
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	return &controllerFixture{store: store, machine: machine, nav: nav, metrics: mt, controller: c}
}

func seedSession(t *testing.T) func(*credstore.Store) {
	return func(s *credstore.Store) {
		require.NoError(t, s.SaveToken("t", time.Time{}))
		require.NoError(t, s.SaveUser(users.User{Username: "admin", IsAdmin: true}))
	}
}

func (f *controllerFixture) signIn(t *testing.T) {
	t.Helper()
	u := users.User{Username: "admin"}
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &u, "tok"))
}

func TestHydratedSessionLeavesLoginForLanding(t *testing.T) {
	f := setupControllerFixture(t, "/login", seedSession(t))

	f.controller.Start()
	require.Equal(t, "/dashboard", f.controller.Current())
	require.Equal(t, "/dashboard", f.nav.Current())
	require.Equal(t, 1, f.nav.calls)
}

func TestAnonymousSentToLogin(t *testing.T) {
	f := setupControllerFixture(t, "/posts", nil)

	f.controller.Start()
	require.Equal(t, "/login", f.controller.Current())

	require.Equal(t, "/register", f.controller.Navigate("/register"))
	require.Equal(t, 1, f.nav.calls, "public pages need no redirect")
}

func TestRepeatedEvaluationRedirectsOnce(t *testing.T) {
	f := setupControllerFixture(t, "/reports", nil)
	f.controller.Start()
	require.Equal(t, 1, f.nav.calls)

	// Changes that do not alter authentication re-evaluate the same input.
	op := f.machine.Start(sessions.KindLogin)
	f.machine.Fail(op, "Login failed")
	f.machine.ClearError()
	f.controller.Start()

	require.Equal(t, 1, f.nav.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Redirects.WithLabelValues("/login")))
}

func TestEveryNavigationToProtectedPathIsGuarded(t *testing.T) {
	f := setupControllerFixture(t, "/login", nil)
	f.controller.Start()

	require.Equal(t, "/login", f.controller.Navigate("/posts"))
	require.Equal(t, "/login", f.controller.Navigate("/posts"))
	require.Equal(t, 2, f.nav.calls)
}

func TestSkipsWhileLoading(t *testing.T) {
	f := setupControllerFixture(t, "/login", nil)
	f.controller.Start()

	op := f.machine.Start(sessions.KindLogin)
	require.Equal(t, "/login", f.controller.Current())
	require.Equal(t, 0, f.nav.calls)

	u := users.User{Username: "admin"}
	require.NoError(t, f.machine.Succeed(op, &u, "tok"))
	require.Equal(t, "/dashboard", f.controller.Current())
	require.Equal(t, 1, f.nav.calls)
}

func TestLogoutNavigatesToLogin(t *testing.T) {
	f := setupControllerFixture(t, "/dashboard", seedSession(t))
	f.controller.Start()
	require.Equal(t, "/dashboard", f.controller.Current())

	f.controller.Navigate("/register")
	require.NoError(t, f.machine.ForceClear(sessions.ReasonLogout))

	require.Equal(t, "/login", f.controller.Current(), "logout leaves even public pages")
	require.Equal(t, "/login", f.nav.Current())
}

func TestRejectedNavigatesToLoginOnce(t *testing.T) {
	f := setupControllerFixture(t, "/posts", nil)
	f.signIn(t)
	f.controller.Start()
	f.controller.Navigate("/posts")
	before := f.nav.calls

	_, epoch := f.machine.Credential()
	for i := 0; i < 3; i++ {
		f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
	}

	require.Equal(t, "/login", f.controller.Current())
	require.Equal(t, before+1, f.nav.calls)
}

func TestStopDetaches(t *testing.T) {
	f := setupControllerFixture(t, "/dashboard", seedSession(t))
	f.controller.Start()
	f.controller.Stop()

	require.NoError(t, f.machine.ForceClear(sessions.ReasonLogout))
	require.Equal(t, "/dashboard", f.controller.Current())
}

// scriptedSession serves a fixed snapshot and hands its listener to the test, so a
// change can be delivered while reads still return the older state.
type scriptedSession struct {
	mu       sync.Mutex
	snap     sessions.Snapshot
	listener sessions.Listener
}

func (s *scriptedSession) Snapshot() sessions.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *scriptedSession) Subscribe(fn sessions.Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
	return func() {}
}

func (s *scriptedSession) deliver(c sessions.Change) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	fn(c)
}

func TestOlderSnapshotDoesNotUndoForcedClear(t *testing.T) {
	admin := users.User{Username: "admin"}
	src := &scriptedSession{snap: sessions.Snapshot{Token: "tok", User: &admin, Version: 5, Phase: sessions.Authenticated}}
	nav := navigation.NewHistory("/posts")
	c, err := navigation.NewController(navigation.NewGuard(), src, nav, "/posts")
	require.NoError(t, err)

	c.Start()
	require.Equal(t, "/posts", c.Current())

	src.deliver(sessions.Change{
		Snapshot: sessions.Snapshot{Version: 7, Phase: sessions.Unauthenticated},
		From:     sessions.Expired,
		To:       sessions.Unauthenticated,
		Reason:   sessions.ReasonRejected,
	})
	require.Equal(t, "/login", c.Current())

	require.Equal(t, "/login", c.Navigate("/posts"), "a read older than the clear must not re-admit the session")
	require.Equal(t, "/login", nav.Current())
}

// clearingSession clears the machine right after the first armed read, so the
// clear lands while the controller is deciding on that read.
type clearingSession struct {
	*sessions.Machine
	armed bool
	done  chan struct{}
}

func (s *clearingSession) Snapshot() sessions.Snapshot {
	snap := s.Machine.Snapshot()
	if !s.armed {
		return snap
	}
	s.armed = false

	go func() {
		defer close(s.done)
		_, _ = s.Machine.ForceClearIfCurrent(mustEpoch(s.Machine), sessions.ReasonRejected)
	}()
	for s.Machine.Snapshot().IsAuthenticated() {
		time.Sleep(time.Millisecond)
	}
	return snap
}

func mustEpoch(m *sessions.Machine) uint64 {
	_, epoch := m.Credential()
	return epoch
}

func TestClearDuringNavigationEndsOnLogin(t *testing.T) {
	store, err := credstore.NewStore(credstore.NewMemoryKV())
	require.NoError(t, err)
	seedSession(t)(store)
	machine, err := sessions.New(store)
	require.NoError(t, err)

	src := &clearingSession{Machine: machine, done: make(chan struct{})}
	nav := navigation.NewHistory("/dashboard")
	c, err := navigation.NewController(navigation.NewGuard(), src, nav, "/dashboard")
	require.NoError(t, err)
	t.Cleanup(c.Stop)
	c.Start()

	src.armed = true
	c.Navigate("/posts")
	<-src.done

	require.False(t, machine.Snapshot().IsAuthenticated())
	require.Equal(t, "/login", c.Current(), "an unauthenticated session is never left on a protected path")
}

func TestNewControllerRequiresDependencies(t *testing.T) {
	_, err := navigation.NewController(nil, nil, nil, "/")
	require.Error(t, err)
}
