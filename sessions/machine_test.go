package sessions_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/credstore"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type machineFixture struct {
	store   *credstore.Store
	machine *sessions.Machine
	mu      sync.Mutex
	changes []sessions.Change
}

func setupMachineFixture(t *testing.T, seed func(*credstore.Store)) *machineFixture {
	t.Helper()

	store, err := credstore.NewStore(credstore.NewMemoryKV())
	require.NoError(t, err)
	if seed != nil {
		seed(store)
	}

	m, err := sessions.New(store)
	require.NoError(t, err)

	f := &machineFixture{store: store, machine: m}
	m.Subscribe(func(c sessions.Change) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.changes = append(f.changes, c)
	})
	return f
}

func (f *machineFixture) recorded() []sessions.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sessions.Change(nil), f.changes...)
}

// requireMirrored checks that the store agrees with memory and that the phase
// follows from the credential and the loading flag.
func (f *machineFixture) requireMirrored(t *testing.T) {
	t.Helper()

	snap := f.machine.Snapshot()
	hasCredential := snap.Token != "" && snap.User != nil
	require.Equal(t, snap.Loading, snap.Phase == sessions.Authenticating)
	require.Equal(t, hasCredential && !snap.Loading, snap.Phase == sessions.Authenticated)
	require.Equal(t, !hasCredential && !snap.Loading, snap.Phase == sessions.Unauthenticated)

	tok, ok := f.store.Token()
	require.Equal(t, snap.Token != "", ok)
	require.Equal(t, snap.Token, tok)

	u, ok := f.store.User()
	require.Equal(t, snap.User != nil, ok)
	if ok {
		require.Equal(t, *snap.User, *u)
	}
}

var adminUser = users.User{Username: "admin", Email: "admin@example.com", IsAdmin: true, IsActive: true}

func TestHydrateFromStore(t *testing.T) {
	f := setupMachineFixture(t, func(s *credstore.Store) {
		require.NoError(t, s.SaveToken("tok", time.Time{}))
		require.NoError(t, s.SaveUser(adminUser))
	})

	snap := f.machine.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, sessions.Authenticated, snap.Phase)
	require.Equal(t, "admin", snap.User.Username)
	require.False(t, snap.Loading)
}

func TestHydrateTokenWithoutUser(t *testing.T) {
	f := setupMachineFixture(t, func(s *credstore.Store) {
		require.NoError(t, s.SaveToken("tok", time.Time{}))
	})

	snap := f.machine.Snapshot()
	require.False(t, snap.IsAuthenticated())
	require.Equal(t, "tok", snap.Token)
	require.Equal(t, sessions.Unauthenticated, snap.Phase)
}

func TestSucceedSetsCredential(t *testing.T) {
	f := setupMachineFixture(t, nil)

	op := f.machine.Start(sessions.KindLogin)
	snap := f.machine.Snapshot()
	require.True(t, snap.Loading)
	require.Equal(t, sessions.Authenticating, snap.Phase)

	require.NoError(t, f.machine.Succeed(op, &adminUser, "tok-1"))
	snap = f.machine.Snapshot()
	require.False(t, snap.Loading)
	require.True(t, snap.IsAuthenticated())
	require.Empty(t, snap.Error)
	f.requireMirrored(t)

	changes := f.recorded()
	require.Len(t, changes, 2)
	require.Equal(t, sessions.ReasonStart, changes[0].Reason)
	require.Equal(t, sessions.Unauthenticated, changes[0].From)
	require.Equal(t, sessions.Authenticating, changes[0].To)
	require.Equal(t, sessions.Authenticated, changes[1].To)
	require.Less(t, changes[0].Snapshot.Version, changes[1].Snapshot.Version)
}

func TestFailKeepsExistingCredential(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok"))

	op := f.machine.Start(sessions.KindLogin)
	require.Empty(t, f.machine.Snapshot().Error)
	require.True(t, f.machine.Fail(op, "Incorrect username or password"))

	snap := f.machine.Snapshot()
	require.Equal(t, "Incorrect username or password", snap.Error)
	require.True(t, snap.IsAuthenticated(), "a failed operation never clears the credential")
	require.False(t, snap.Loading)
	f.requireMirrored(t)

	f.machine.ClearError()
	require.Empty(t, f.machine.Snapshot().Error)
}

func TestStartClearsError(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.True(t, f.machine.Fail(f.machine.Start(sessions.KindLogin), "Login failed"))
	require.Equal(t, "Login failed", f.machine.Snapshot().Error)

	f.machine.Start(sessions.KindRegister)
	require.Empty(t, f.machine.Snapshot().Error)
}

func TestNewerOperationSupersedesOlder(t *testing.T) {
	f := setupMachineFixture(t, nil)

	older := f.machine.Start(sessions.KindLogin)
	newer := f.machine.Start(sessions.KindLogin)
	require.NotEqual(t, older.ID, newer.ID)

	require.ErrorIs(t, f.machine.Succeed(older, &adminUser, "stale-token"), sessions.ErrStale)
	require.True(t, f.machine.Snapshot().Loading, "the newer operation is still in flight")

	require.True(t, f.machine.Fail(newer, "Login failed"))
	snap := f.machine.Snapshot()
	require.Empty(t, snap.Token)
	require.False(t, snap.Loading)
	require.False(t, f.machine.Fail(older, "late"))
	require.Equal(t, "Login failed", f.machine.Snapshot().Error)
}

func TestForceClearDiscardsInFlight(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok"))

	inflight := f.machine.Start(sessions.KindLogin)
	require.NoError(t, f.machine.ForceClear(sessions.ReasonLogout))

	require.ErrorIs(t, f.machine.Succeed(inflight, &adminUser, "late-token"), sessions.ErrStale)
	snap := f.machine.Snapshot()
	require.False(t, snap.IsAuthenticated())
	require.Empty(t, snap.Token)
	require.False(t, snap.Loading)
	f.requireMirrored(t)

	last := f.recorded()[len(f.recorded())-1]
	require.Equal(t, sessions.ReasonLogout, last.Reason)
	require.Equal(t, sessions.Unauthenticated, last.To)
}

func TestRejectedClearPassesThroughExpired(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok"))
	_, epoch := f.machine.Credential()

	before := len(f.recorded())
	cleared, err := f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
	require.NoError(t, err)
	require.True(t, cleared)
	cleared, err = f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
	require.NoError(t, err)
	require.False(t, cleared)

	changes := f.recorded()[before:]
	require.Len(t, changes, 2)
	require.Equal(t, sessions.Authenticated, changes[0].From)
	require.Equal(t, sessions.Expired, changes[0].To)
	require.Equal(t, sessions.Expired, changes[0].Snapshot.Phase)
	require.Equal(t, sessions.Expired, changes[1].From)
	require.Equal(t, sessions.Unauthenticated, changes[1].To)
	require.True(t, changes[1].Reason.Forced())
}

func TestForceClearIfCurrentIgnoresOldEpoch(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok-1"))
	_, oldEpoch := f.machine.Credential()

	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok-2"))
	cleared, err := f.machine.ForceClearIfCurrent(oldEpoch, sessions.ReasonRejected)
	require.NoError(t, err)
	require.False(t, cleared, "a rejection of the previous credential must not clear the new one")
	require.True(t, f.machine.Snapshot().IsAuthenticated())
}

func TestStartIfIdle(t *testing.T) {
	f := setupMachineFixture(t, nil)

	op, ok := f.machine.StartIfIdle(sessions.KindResume)
	require.True(t, ok)
	require.True(t, op.Valid())

	again, ok := f.machine.StartIfIdle(sessions.KindResume)
	require.False(t, ok, "a second resume while loading is a no-op")
	require.False(t, again.Valid())

	require.NoError(t, f.machine.Succeed(op, &adminUser, "tok"))
	_, ok = f.machine.StartIfIdle(sessions.KindResume)
	require.False(t, ok, "resume while authenticated is a no-op")
}

func TestConcurrentForceClearIfCurrentClearsOnce(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok"))
	_, epoch := f.machine.Credential()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cleared, _ := f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected); cleared {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
}

func TestUnsubscribe(t *testing.T) {
	f := setupMachineFixture(t, nil)

	var calls int
	unsubscribe := f.machine.Subscribe(func(sessions.Change) { calls++ })
	f.machine.Start(sessions.KindLogin)
	unsubscribe()
	require.NoError(t, f.machine.ForceClear(sessions.ReasonLogout))
	require.Equal(t, 1, calls)
}

// TestRandomSequencesKeepStoreMirrored drives the machine with random operations and
// checks after every step that storage and memory agree.
func TestRandomSequencesKeepStoreMirrored(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	kinds := []sessions.Kind{sessions.KindLogin, sessions.KindRegister, sessions.KindResume}

	for run := 0; run < 50; run++ {
		f := setupMachineFixture(t, nil)
		var ops []sessions.Operation
		var lastVersion uint64

		for step := 0; step < 40; step++ {
			switch rng.Intn(7) {
			case 0, 1:
				ops = append(ops, f.machine.Start(kinds[rng.Intn(len(kinds))]))
			case 2:
				if len(ops) > 0 {
					u := adminUser
					u.Username = randomName(rng)
					tok := ""
					if rng.Intn(2) == 0 {
						tok = "tok-" + u.Username
					}
					f.machine.Succeed(ops[rng.Intn(len(ops))], &u, tok)
				}
			case 3:
				if len(ops) > 0 {
					f.machine.Fail(ops[rng.Intn(len(ops))], "failed")
				}
			case 4:
				f.machine.ForceClear(sessions.ReasonLogout)
			case 5:
				_, epoch := f.machine.Credential()
				f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
			case 6:
				f.machine.ClearError()
			}

			f.requireMirrored(t)
			snap := f.machine.Snapshot()
			require.GreaterOrEqual(t, snap.Version, lastVersion)
			lastVersion = snap.Version
		}

		changes := f.recorded()
		for i := 1; i < len(changes); i++ {
			require.Less(t, changes[i-1].Snapshot.Version, changes[i].Snapshot.Version)
		}
	}
}

// faultyKV refuses writes to the keys in failSet and every Delete while failDelete
// is set.
type faultyKV struct {
	credstore.KV

	mu         sync.Mutex
	failSet    map[string]bool
	failDelete bool
}

var errDiskFull = errors.New("disk full")

func (k *faultyKV) Set(key, value string) error {
	k.mu.Lock()
	fail := k.failSet[key]
	k.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return k.KV.Set(key, value)
}

func (k *faultyKV) Delete(key string) error {
	k.mu.Lock()
	fail := k.failDelete
	k.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return k.KV.Delete(key)
}

func (k *faultyKV) set(failSet map[string]bool, failDelete bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failSet = failSet
	k.failDelete = failDelete
}

func setupFaultyMachine(t *testing.T) (*faultyKV, *credstore.Store, *sessions.Machine) {
	t.Helper()

	kv := &faultyKV{KV: credstore.NewMemoryKV()}
	store, err := credstore.NewStore(kv)
	require.NoError(t, err)
	m, err := sessions.New(store)
	require.NoError(t, err)
	return kv, store, m
}

func TestForceClearReportsStoreFailure(t *testing.T) {
	kv, store, m := setupFaultyMachine(t)
	require.NoError(t, m.Succeed(m.Start(sessions.KindLogin), &adminUser, "tok"))

	kv.set(nil, true)
	err := m.ForceClear(sessions.ReasonLogout)
	require.ErrorIs(t, err, errDiskFull)
	require.False(t, m.Snapshot().IsAuthenticated(), "memory is cleared even when the store is not")

	kv.set(nil, false)
	require.NoError(t, m.ForceClear(sessions.ReasonLogout))

	restarted, err := sessions.New(store)
	require.NoError(t, err)
	require.False(t, restarted.Snapshot().IsAuthenticated())
}

func TestSucceedFailsWhenStoreRefusesWrite(t *testing.T) {
	kv, store, m := setupFaultyMachine(t)
	require.NoError(t, m.Succeed(m.Start(sessions.KindLogin), &adminUser, "tok-1"))
	_, epoch := m.Credential()

	kv.set(map[string]bool{credstore.UserKey: true}, false)
	other := users.User{Username: "alice", IsActive: true}
	err := m.Succeed(m.Start(sessions.KindLogin), &other, "tok-2")
	require.ErrorIs(t, err, errDiskFull)
	require.NotErrorIs(t, err, sessions.ErrStale)

	snap := m.Snapshot()
	require.Equal(t, "tok-1", snap.Token)
	require.Equal(t, "admin", snap.User.Username)
	require.Equal(t, sessions.PersistFailedMessage, snap.Error)
	require.False(t, snap.Loading)

	tok, ok := store.Token()
	require.True(t, ok)
	require.Equal(t, "tok-1", tok, "the partial write is rolled back")
	_, current := m.Credential()
	require.Equal(t, epoch, current)
}

func TestSameTokenKeepsEpoch(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindLogin), &adminUser, "tok"))
	_, epoch := f.machine.Credential()

	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindResume), &adminUser, "tok"))
	_, again := f.machine.Credential()
	require.Equal(t, epoch, again)

	cleared, err := f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
	require.NoError(t, err)
	require.True(t, cleared, "a rejection of the unchanged credential still clears")
}

func TestCachedUserWithoutTokenIsCleared(t *testing.T) {
	f := setupMachineFixture(t, nil)
	require.NoError(t, f.machine.Succeed(f.machine.Start(sessions.KindRegister), &adminUser, ""))
	token, epoch := f.machine.Credential()
	require.Empty(t, token)

	cleared, err := f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
	require.NoError(t, err)
	require.True(t, cleared)
	require.Nil(t, f.machine.Snapshot().User)
	f.requireMirrored(t)

	cleared, err = f.machine.ForceClearIfCurrent(epoch, sessions.ReasonRejected)
	require.NoError(t, err)
	require.False(t, cleared)
}

func randomName(rng *rand.Rand) string {
	const letters = "abcdefgh"
	b := make([]byte, 5)
	for i := range b {
		b[i] = letters[rng.Intn(len(letters))]
	}
	return string(b)
}
